package daemon

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type NotifyFunc func(data any)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// Scheduler runs Task on a cron schedule. Runs never overlap: a run that
// takes longer than the period delays the next one instead.
type Scheduler struct {
	OnError NotifyFunc // called on task error
	Task    TaskFunc   // task callback

	parser cron.Parser

	schedule cron.Schedule
	expr     string
	nextRun  time.Time

	mu      sync.Mutex
	running bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

// internal control kinds (not user visible events)
type controlKind int

const (
	ctrlRecalculate controlKind = iota // timer needs recalculation due to schedule change
	ctrlSkip                           // next run skipped
	ctrlRunNow                         // run once immediately, keep the schedule
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(task TaskFunc, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	s := &Scheduler{
		OnError:   onError,
		Task:      task,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan controlMsg, 4),
		stopCh:    make(chan struct{}),
	}
	return s
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

// Schedule replaces the schedule. cronExpr accepts an optional seconds
// field and descriptors such as "@every 30s".
func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid schedule %q", cronExpr)
	}

	s.mu.Lock()
	s.expr = cronExpr
	running := s.running
	if !running {
		s.schedule = sh
		s.nextRun = sh.Next(time.Now())
	}
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Skip skips the next scheduled run.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return pkgerrors.New("no active schedule to skip")
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlSkip, nil)
	}
	return nil
}

// RunNow runs the task once as soon as the loop is idle.
func (s *Scheduler) RunNow() {
	s.trySendControl(ctrlRunNow, nil)
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRun = s.nextRun
	running = s.running
	return
}

// Expr returns the cron expression last scheduled.
func (s *Scheduler) Expr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

func (s *Scheduler) runScheduled() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		schedule, nextRun := s.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if schedule == nil || nextRun.IsZero() {
				continue
			}
			logrus.Tracef("running scheduled task at %s", nextRun.Format(time.DateTime))
			s.run()
			s.advanceNextRun()
		case <-s.stopCh:
			timer.Stop()
			return
		case msg := <-s.controlCh: // internal control messages
			timer.Stop()
			logrus.WithFields(logrus.Fields{
				"kind": msg.kind,
				"data": msg.data,
			}).Debug("received control msg")

			switch msg.kind {
			case ctrlRecalculate:
				sh := msg.data.(cron.Schedule)
				s.mu.Lock()
				s.schedule = sh
				s.nextRun = sh.Next(time.Now())
				s.mu.Unlock()
			case ctrlSkip:
				// nextRun already advanced by Skip
			case ctrlRunNow:
				s.run()
			}
		}
	}
}

func (s *Scheduler) run() {
	if err := s.Task(); err != nil {
		s.sendError(err)
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

// advanceNextRun moves to the first run after now, so a task slower than
// the period does not cause a burst of catch-up runs.
func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	next := s.schedule.Next(s.nextRun)
	if now := time.Now(); next.Before(now) {
		next = s.schedule.Next(now)
	}
	s.nextRun = next
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
