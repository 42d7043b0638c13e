package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/adc"
	"github.com/charlie0129/vbat/pkg/battery"
	"github.com/charlie0129/vbat/pkg/board"
	"github.com/charlie0129/vbat/pkg/config"
	"github.com/charlie0129/vbat/pkg/efuse"
	"github.com/charlie0129/vbat/pkg/esp32"
	"github.com/charlie0129/vbat/pkg/events"
)

// mockBatteryRaw is the 12-bit count the mock chip reports on the sense
// pin, about 3.7 V behind the divider with the default reference.
const mockBatteryRaw = 2120

var (
	chip    *esp32.Chip
	meter   *battery.Meter
	conf    config.Config
	sseHub  = events.NewEventHub()
	sampler *Scheduler
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", getConfig)
	router.GET("/voltage", getVoltage)
	router.GET("/readings", getReadings)
	router.GET("/calibration", getCalibration)
	router.PUT("/vref-gpio", setVrefGPIO)
	router.PUT("/reference-voltage", setReferenceVoltage)
	router.PUT("/samples", setSamples)
	router.GET("/radios-allowed", getRadiosAllowed)
	router.GET("/status", getStatus)
	router.GET("/events", getEvents)
	router.GET("/version", getVersion)

	return router
}

// openChip connects to the board console, or to an in-memory chip when
// no serial device is configured.
func openChip(c config.Config, b board.Board) (*esp32.Chip, error) {
	var ch *esp32.Chip
	if c.SerialDevice() == "" {
		logrus.Warn("no serial device configured, using a mock chip without eFuse calibration")
		mock := esp32.NewMockConnection(efuse.Fuses{})
		mock.SetLevel(b.Unit, b.Channel, mockBatteryRaw)
		mock.SetNoise(4)
		ch = esp32.NewMock(mock)
	} else {
		ch = esp32.New(esp32.NewSerialConnection(c.SerialDevice(), c.Baud()))
	}

	if err := ch.Open(); err != nil {
		return nil, err
	}
	return ch, nil
}

// applyConfig pushes the tunables of c into the meter.
func applyConfig(c config.Config, m *battery.Meter) error {
	if err := m.SetReferenceVoltage(c.ReferenceVoltage()); err != nil {
		return pkgerrors.Wrap(err, "invalid referenceVoltage")
	}
	if err := m.SetSamples(c.Samples()); err != nil {
		return pkgerrors.Wrap(err, "invalid samples")
	}
	return nil
}

func onSampleError(data any) {
	err, ok := data.(error)
	if !ok {
		return
	}
	entry := logrus.WithError(err)
	if errors.Is(err, adc.ErrTimeout) {
		entry.Warn("battery sample timed out")
		return
	}
	entry.Error("failed to sample battery voltage")
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	b, err := board.Get(conf.Board())
	if err != nil {
		return err
	}

	chip, err = openChip(conf, b)
	if err != nil {
		return err
	}

	fuses, err := chip.ReadFuses()
	if err != nil {
		_ = chip.Close()
		return pkgerrors.Wrap(err, "failed to read eFuses")
	}

	meter, err = battery.NewMeter(chip, fuses, b)
	if err != nil {
		_ = chip.Close()
		return err
	}
	if err := applyConfig(conf, meter); err != nil {
		_ = chip.Close()
		return err
	}
	meter.LogCharacterisations(logrus.StandardLogger())

	sampler = NewScheduler(sampleOnce, onSampleError)
	if err := sampler.Schedule(conf.SampleSchedule()); err != nil {
		_ = chip.Close()
		return err
	}
	sampler.Start()
	sampler.RunNow()

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := applyConfig(conf, meter); err != nil {
				logrus.Errorf("failed to apply reloaded config: %v", err)
				continue
			}
			if err := sampler.Schedule(conf.SampleSchedule()); err != nil {
				logrus.Errorf("failed to apply reloaded sample schedule: %v", err)
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// End event streams, otherwise Shutdown waits for them until it times out.
	srv.RegisterOnShutdown(sseHub.Close)

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping sampling loop")
	sampler.Stop()

	logrus.Info("closing chip connection")
	err = chip.Close()
	if err != nil {
		logrus.Errorf("failed to close chip connection: %v", err)
	}

	logrus.Info("exiting")
	return nil
}
