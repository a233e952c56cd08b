package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/gophgram/internal/server/metrics"
	"github.com/dmitrijs2005/gophgram/internal/wire"
)

// SendMessageRequest carries one encrypted envelope to a recipient. Content
// is opaque here; encryption happened on the sender's client.
type SendMessageRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// SendMessage records the message in the ledger and pushes it to the
// recipient's live channels. "Not delivered live" is a normal outcome; the
// recipient polls the inbox on next login.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	acct := accountFrom(r.Context())

	m, err := h.ledger.Send(acct.UserID, req.To, req.Content)
	if err != nil {
		h.fail(w, err)
		return
	}
	metrics.MessagesSent.Inc()

	live := h.transport.PushTo(m.ToUserID, wire.NewNewMessage(wire.MessagePayload{
		MessageID:  m.MessageID,
		From:       acct.Username,
		FromUserID: m.FromUserID,
		Content:    m.Content,
		Timestamp:  m.SentAt.UnixMilli(),
		Status:     string(m.Status),
	}))
	if !live {
		h.log.Debug(r.Context(), "recipient offline, stored for polling",
			"message_id", m.MessageID, "to", m.ToUsername)
	}

	h.JSON(w, http.StatusCreated, h.toMessageJSON(m))
}

// MarkDelivered acknowledges live or polled receipt of a message by the
// authenticated recipient.
func (h *Handler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())

	m, err := h.ledger.Deliver(chi.URLParam(r, "messageID"), acct.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if m == nil {
		h.Error(w, http.StatusNotFound, "unknown message")
		return
	}

	h.JSON(w, http.StatusOK, h.toMessageJSON(m))
}

// MarkRead marks a delivered message read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	m, err := h.ledger.MarkRead(chi.URLParam(r, "messageID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if m == nil {
		h.Error(w, http.StatusNotFound, "unknown message")
		return
	}

	h.JSON(w, http.StatusOK, h.toMessageJSON(m))
}

// InboxResponse is the polled message feed, most recent first.
type InboxResponse struct {
	Messages []messageJSON `json:"messages"`
}

// maxInboxQueryLimit caps client-supplied ?limit values so a single request
// cannot demand an arbitrarily large page.
const maxInboxQueryLimit = 1000

// Inbox returns the caller's inbox, capped at ?limit (server default
// otherwise).
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())

	limit := h.inboxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxInboxQueryLimit)
		}
	}

	inbox := h.ledger.InboxFor(acct.UserID, limit)
	messages := make([]messageJSON, 0, len(inbox))
	for _, m := range inbox {
		messages = append(messages, h.toMessageJSON(m))
	}

	h.JSON(w, http.StatusOK, InboxResponse{Messages: messages})
}

// UnreadResponse reports the count of not-yet-read inbox messages.
type UnreadResponse struct {
	Count int `json:"count"`
}

// Unread returns the caller's unread count.
func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	h.JSON(w, http.StatusOK, UnreadResponse{Count: h.ledger.UnreadCountFor(acct.UserID)})
}
