package api

import (
	"io"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/gophgram/internal/wire"
)

// sseChannel adapts one streaming HTTP response to presence.Channel. Writes
// are serialized; a failed write surfaces to the transport, which detaches
// the channel eventually via the closed request context.
type sseChannel struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

func newSSEChannel(w io.Writer, flusher http.Flusher) *sseChannel {
	return &sseChannel{w: w, flusher: flusher}
}

func (c *sseChannel) Send(ev wire.Event) error {
	frame, err := wire.EncodeFrame(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// Stream opens the push channel: sends the connected ack, registers the
// channel with the presence transport, and blocks until the client
// disconnects. One Attach per accepted connection, one Detach on close.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	acct := accountFrom(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := newSSEChannel(w, flusher)
	if err := ch.Send(wire.NewConnected(acct.UserID, acct.Username)); err != nil {
		return
	}

	h.transport.Attach(acct.UserID, ch)
	defer h.transport.Detach(acct.UserID, ch)

	<-r.Context().Done()
}
