package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charlie0129/vbat/pkg/events"
)

func TestReadEvents(t *testing.T) {
	stream := "event:battery.voltage\ndata:{\"voltage\":3.7}\n\n" +
		": keep-alive\n\n" +
		"event:sample.error\ndata:{\"message\":\"timeout\"}\n\n"

	out := make(chan events.Event, 4)
	readEvents(context.Background(), strings.NewReader(stream), out)
	close(out)

	var got []events.Event
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[0].Name != events.BatteryVoltage || string(got[0].Data) != `{"voltage":3.7}` {
		t.Errorf("first event = %s %s", got[0].Name, got[0].Data)
	}

	e, err := events.DecodeAs[events.SampleErrorEvent](got[1])
	if err != nil {
		t.Fatalf("DecodeAs() error = %v", err)
	}
	if e.Message != "timeout" {
		t.Errorf("Message = %q, want timeout", e.Message)
	}
}

func serveUnix(t *testing.T, h http.Handler) string {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "vbat.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)

	return sock
}

func TestSend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"v1.2.3"`))
	})
	mux.HandleFunc("/samples", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`"samples must be between 1 and 64, got 65"`))
	})

	c := NewClient(serveUnix(t, mux))

	v, err := c.GetVersion()
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if v != "v1.2.3" {
		t.Errorf("GetVersion() = %q", v)
	}

	_, err = c.Put("/samples", "65")
	if err == nil {
		t.Fatalf("Put() expected an error")
	}
	if want := "got 400: samples must be between 1 and 64, got 65"; err.Error() != want {
		t.Errorf("Put() error = %q, want %q", err.Error(), want)
	}

	_, err = c.Get("/limit")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(/limit) error = %v, want ErrNotFound", err)
	}

	_, err = c.Send(http.MethodDelete, "/samples", "")
	if err == nil {
		t.Errorf("Send(DELETE) expected an error")
	}
}

func TestDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))

	_, err := c.Get("/version")
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("Get() error = %v, want ErrDaemonNotRunning", err)
	}
}
