// Package presence holds the registry of live push channels per user and
// delivers events to them. A user may have several channels at once (tabs,
// devices); writes to one user's channels happen in registration order, and
// a failing channel never blocks delivery to the others.
package presence

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophgram/internal/logging"
	"github.com/dmitrijs2005/gophgram/internal/server/metrics"
	"github.com/dmitrijs2005/gophgram/internal/wire"
)

// Channel is one live push-channel handle. Implementations must be safe for
// use by a single writer; Send returns an error on a broken connection.
type Channel interface {
	Send(ev wire.Event) error
}

// PresenceSetter flips the online flag of a user; satisfied by the identity
// directory.
type PresenceSetter interface {
	SetPresence(userID string, online bool)
}

// Transport is the server-side push fan-out.
type Transport struct {
	mu       sync.Mutex
	channels map[string][]Channel

	presence PresenceSetter
	log      logging.Logger
}

func NewTransport(presence PresenceSetter, log logging.Logger) *Transport {
	return &Transport{
		channels: make(map[string][]Channel),
		presence: presence,
		log:      log.With("component", "presence"),
	}
}

// Attach registers a channel under the user. The first channel marks the
// user online.
func (t *Transport) Attach(userID string, ch Channel) {
	t.mu.Lock()
	existing := t.channels[userID]
	t.channels[userID] = append(existing, ch)
	first := len(existing) == 0
	t.mu.Unlock()

	metrics.PushChannels.Inc()
	if first {
		t.presence.SetPresence(userID, true)
	}
}

// Detach removes one channel. When the user's channel set becomes empty the
// user key is removed from the registry and the user is marked offline.
func (t *Transport) Detach(userID string, ch Channel) {
	t.mu.Lock()
	chans := t.channels[userID]
	removed := false
	for i, c := range chans {
		if c == ch {
			t.channels[userID] = append(chans[:i:i], chans[i+1:]...)
			removed = true
			break
		}
	}
	last := removed && len(t.channels[userID]) == 0
	if last {
		delete(t.channels, userID)
	}
	t.mu.Unlock()

	if removed {
		metrics.PushChannels.Dec()
	}
	if last {
		t.presence.SetPresence(userID, false)
	}
}

// PushTo serializes the event to every channel registered for the user, in
// registration order. A single write failure is logged and does not abort
// delivery to the user's other channels. It returns false when nothing was
// written — a normal outcome for offline users, who pick the message up by
// polling the ledger.
func (t *Transport) PushTo(userID string, ev wire.Event) bool {
	t.mu.Lock()
	chans := make([]Channel, len(t.channels[userID]))
	copy(chans, t.channels[userID])
	t.mu.Unlock()

	delivered := 0
	for _, ch := range chans {
		if err := ch.Send(ev); err != nil {
			metrics.PushWrites.WithLabelValues("error").Inc()
			t.log.Warn(context.Background(), "channel write failed",
				"user_id", userID, "event", ev.EventType(), "error", err.Error())
			continue
		}
		metrics.PushWrites.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered > 0
}

// Broadcast writes the event to all channels of all users and returns the
// count of successful writes. Per-write isolation as in PushTo; no ordering
// guarantee across users.
func (t *Transport) Broadcast(ev wire.Event) int {
	t.mu.Lock()
	all := make(map[string][]Channel, len(t.channels))
	for userID, chans := range t.channels {
		cp := make([]Channel, len(chans))
		copy(cp, chans)
		all[userID] = cp
	}
	t.mu.Unlock()

	count := 0
	for userID, chans := range all {
		for _, ch := range chans {
			if err := ch.Send(ev); err != nil {
				metrics.PushWrites.WithLabelValues("error").Inc()
				t.log.Warn(context.Background(), "channel write failed",
					"user_id", userID, "event", ev.EventType(), "error", err.Error())
				continue
			}
			metrics.PushWrites.WithLabelValues("ok").Inc()
			count++
		}
	}
	return count
}

// ChannelCount reports how many channels a user currently has attached.
func (t *Transport) ChannelCount(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.channels[userID])
}

// Reset detaches everything. Test and shutdown hook.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, chans := range t.channels {
		metrics.PushChannels.Sub(float64(len(chans)))
	}
	t.channels = make(map[string][]Channel)
}
