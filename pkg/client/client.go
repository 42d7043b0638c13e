package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vbat/pkg/events"
)

// Client is a struct for communicating with vbat daemon
type Client struct {
	socketPath string
	httpClient *http.Client
}

// NewClient is a constructor for creating a new Client
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					conn, err := d.DialContext(ctx, "unix", socketPath)
					if err != nil {
						if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
							return nil, ErrDaemonNotRunning
						}
						if errors.Is(err, os.ErrPermission) {
							return nil, ErrPermissionDenied
						}
						logrus.Errorf("failed to connect to unix socket: %v", err)
						return nil, err
					}
					return conn, err
				},
			},
		},
	}
}

// Send is a method for sending a request to the vbat daemon
func (c *Client) Send(method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"data":   data,
		"unix":   c.socketPath,
	}).Debug("sending request")

	var body io.Reader
	switch method {
	case http.MethodGet:
	case http.MethodPost, http.MethodPut:
		body = strings.NewReader(data)
	default:
		return "", pkgerrors.Errorf("unknown method: %s", method)
	}

	req, err := http.NewRequest(method, "http://unix"+path, body)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to send request")
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to read response body")
	}
	ret := string(b)

	if resp.StatusCode == http.StatusNotFound {
		return "", pkgerrors.Wrapf(ErrNotFound, "%s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", pkgerrors.Errorf("got %d: %s", resp.StatusCode, daemonMessage(ret))
	}

	return ret, nil
}

// Get is a method for sending a GET request to the vbat daemon
func (c *Client) Get(path string) (string, error) {
	return c.Send(http.MethodGet, path, "")
}

// Put is a method for sending a PUT request to the vbat daemon
func (c *Client) Put(path string, data string) (string, error) {
	return c.Send(http.MethodPut, path, data)
}

// SubscribeEvents streams daemon events until ctx is done or the daemon
// goes away. The returned channel is closed in both cases.
func (c *Client) SubscribeEvents(ctx context.Context) <-chan events.Event {
	out := make(chan events.Event, 16)

	go func() {
		defer close(out)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
		if err != nil {
			logrus.Errorf("failed to create event request: %v", err)
			return
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				logrus.Errorf("failed to subscribe to events: %v", err)
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			logrus.Errorf("failed to subscribe to events: got %d", resp.StatusCode)
			return
		}

		readEvents(ctx, resp.Body, out)
	}()

	return out
}

// readEvents parses a text/event-stream body into out.
func readEvents(ctx context.Context, r io.Reader, out chan<- events.Event) {
	scanner := bufio.NewScanner(r)
	var name string
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if name != "" || data.Len() > 0 {
				ev := events.Event{Name: name, Data: json.RawMessage(data.String())}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

// daemonMessage unquotes the JSON string the daemon uses for errors.
func daemonMessage(body string) string {
	var s string
	if err := json.Unmarshal([]byte(body), &s); err == nil {
		return s
	}
	return strings.TrimSpace(body)
}
