package client

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophgram/internal/common"
	"github.com/dmitrijs2005/gophgram/internal/logging"
	"github.com/dmitrijs2005/gophgram/internal/wire"
)

// State describes the stream lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// backoffTable drives reconnection delays. The attempt counter indexes into
// it and is clamped to the last entry.
var backoffTable = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// EventHandler receives every decoded push event, in stream order.
type EventHandler func(ev wire.Event)

// ReconnectingClient consumes the server push stream and transparently
// reconnects with exponential backoff when the connection drops. The
// attempt counter resets whenever a connection opens and whenever a frame
// parses, so a healthy stream always retries quickly after a drop.
// Disconnect is terminal: it cancels the live connection and any pending
// retry timer.
type ReconnectingClient struct {
	baseURL string
	token   string
	handler EventHandler
	log     logging.Logger

	// No client timeout: the stream is long-lived by design.
	http *http.Client

	mu      sync.Mutex
	state   State
	attempt int
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool

	// Test seam for retry scheduling.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewReconnectingClient(baseURL, token string, handler EventHandler, log logging.Logger) *ReconnectingClient {
	return &ReconnectingClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		handler:   handler,
		log:       log,
		http:      &http.Client{},
		afterFunc: time.AfterFunc,
	}
}

func (c *ReconnectingClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts consuming the stream. It is a no-op if the client is
// already running or has been disconnected.
func (c *ReconnectingClient) Connect() {
	c.mu.Lock()
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	go c.run()
}

// Disconnect tears the stream down for good: the in-flight connection is
// cancelled and no retry timer is left running.
func (c *ReconnectingClient) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.state = StateDisconnected
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// run performs one connection attempt and, unless the client was
// disconnected, schedules the next one.
func (c *ReconnectingClient) run() {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancel = cancel
	c.mu.Unlock()

	err := c.consume(ctx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel = nil
	if c.closed {
		c.state = StateDisconnected
		return
	}

	if err != nil {
		c.log.Warn(ctx, "stream dropped", "error", err.Error())
	}

	c.state = StateConnecting
	delay := c.nextDelayLocked()
	c.timer = c.afterFunc(delay, func() { c.run() })
	c.attempt++
}

// nextDelayLocked returns the delay for the current attempt. Callers hold mu.
func (c *ReconnectingClient) nextDelayLocked() time.Duration {
	i := c.attempt
	if i >= len(backoffTable) {
		i = len(backoffTable) - 1
	}
	return backoffTable[i]
}

// consume opens the stream and dispatches frames until the connection
// fails or the context is cancelled.
func (c *ReconnectingClient) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set(common.SessionTokenHeaderName, "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream rejected with status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.state = StateConnected
	c.attempt = 0
	c.mu.Unlock()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, wire.FramePrefix) {
			c.log.Warn(ctx, "dropping unrecognized stream line")
			continue
		}

		ev, err := wire.DecodeEvent([]byte(strings.TrimPrefix(line, wire.FramePrefix)))
		if err != nil {
			c.log.Warn(ctx, "dropping malformed event", "error", err.Error())
			continue
		}

		c.mu.Lock()
		c.attempt = 0
		c.mu.Unlock()

		if c.handler != nil {
			c.handler(ev)
		}
	}
}
