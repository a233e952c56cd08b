// Package ledger tracks each message's lifecycle (sent → delivered → read)
// and per-user inbox/outbox indices. The ledger is the sole mutator of
// message status and timestamps; content is opaque at this layer.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophgram/internal/common"
)

// Status is the delivery state of a message. Transitions are monotonic:
// sent → delivered → read, no regressions, no skipping.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// DefaultInboxLimit caps InboxFor when the caller passes limit <= 0.
const DefaultInboxLimit = 50

// Message is one ledger entry. Content is an opaque encrypted envelope.
type Message struct {
	MessageID   string
	FromUserID  string
	ToUserID    string
	ToUsername  string
	Content     string
	Status      Status
	SentAt      time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// RecipientResolver verifies recipient existence; satisfied by the identity
// directory.
type RecipientResolver interface {
	LookupUsername(username string) (userID string, ok bool)
}

// Ledger is the in-memory message store and state machine.
type Ledger struct {
	mu       sync.RWMutex
	messages map[string]*Message
	inbox    map[string][]string // recipient userID → messageIDs, send order
	outbox   map[string][]string // sender userID → messageIDs, send order

	resolver RecipientResolver

	// now is a test seam for timestamps.
	now func() time.Time
}

func NewLedger(resolver RecipientResolver) *Ledger {
	return &Ledger{
		messages: make(map[string]*Message),
		inbox:    make(map[string][]string),
		outbox:   make(map[string][]string),
		resolver: resolver,
		now:      time.Now,
	}
}

// Send records a new message in the sent state and appends it to the
// sender's outbox and the recipient's inbox. The recipient is indexed at
// send time so offline users pick the message up by polling.
func (l *Ledger) Send(fromUserID, toUsername, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, common.ErrEmptyContent
	}

	toUserID, ok := l.resolver.LookupUsername(toUsername)
	if !ok {
		return nil, common.ErrorNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m := &Message{
		MessageID:  uuid.NewString(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		ToUsername: toUsername,
		Content:    content,
		Status:     StatusSent,
		SentAt:     l.now(),
	}
	l.messages[m.MessageID] = m
	l.outbox[fromUserID] = append(l.outbox[fromUserID], m.MessageID)
	l.inbox[toUserID] = append(l.inbox[toUserID], m.MessageID)

	snapshot := *m
	return &snapshot, nil
}

// Deliver advances a message to delivered. An unknown message ID returns
// (nil, nil) — not found is distinguishable from a broken call. A message
// addressed to someone else, or one that is not in the sent state, fails
// closed with ErrInvalidTransition.
func (l *Ledger) Deliver(messageID, toUserID string) (*Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.messages[messageID]
	if !ok {
		return nil, nil
	}
	if m.ToUserID != toUserID {
		return nil, common.ErrInvalidTransition
	}
	if m.Status != StatusSent {
		return nil, common.ErrInvalidTransition
	}

	now := l.now()
	m.Status = StatusDelivered
	m.DeliveredAt = &now

	snapshot := *m
	return &snapshot, nil
}

// MarkRead advances a delivered message to read. An unknown message ID
// returns (nil, nil); reading before delivery, or re-reading, fails closed
// with ErrInvalidTransition.
func (l *Ledger) MarkRead(messageID string) (*Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.messages[messageID]
	if !ok {
		return nil, nil
	}
	if m.Status != StatusDelivered {
		return nil, common.ErrInvalidTransition
	}

	now := l.now()
	m.Status = StatusRead
	m.ReadAt = &now

	snapshot := *m
	return &snapshot, nil
}

// InboxFor returns the user's inbox, most recent first, capped at limit
// (DefaultInboxLimit when limit <= 0). Stale references to purged messages
// are silently dropped.
func (l *Ledger) InboxFor(userID string, limit int) []*Message {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.inbox[userID]
	// Allocation is bounded by the inbox size, not the requested limit.
	out := make([]*Message, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		m, ok := l.messages[ids[i]]
		if !ok {
			continue
		}
		snapshot := *m
		out = append(out, &snapshot)
	}
	return out
}

// UnreadCountFor counts inbox messages not yet read.
func (l *Ledger) UnreadCountFor(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, id := range l.inbox[userID] {
		if m, ok := l.messages[id]; ok && m.Status != StatusRead {
			count++
		}
	}
	return count
}

// ClearAll wipes all messages and indices. Test and reset hook.
func (l *Ledger) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = make(map[string]*Message)
	l.inbox = make(map[string][]string)
	l.outbox = make(map[string][]string)
}

// OutboxFor returns the user's sent messages, most recent first, capped at
// limit (DefaultInboxLimit when limit <= 0).
func (l *Ledger) OutboxFor(userID string, limit int) []*Message {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.outbox[userID]
	out := make([]*Message, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		m, ok := l.messages[ids[i]]
		if !ok {
			continue
		}
		snapshot := *m
		out = append(out, &snapshot)
	}
	return out
}
