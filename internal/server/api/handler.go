// Package api exposes the messaging core over HTTP: JSON endpoints for
// identity and the delivery ledger, and a long-lived SSE stream as the push
// channel. Handlers translate between transport shapes and the core
// packages; all domain rules live in identity, ledger, and presence.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophgram/internal/common"
	"github.com/dmitrijs2005/gophgram/internal/logging"
	"github.com/dmitrijs2005/gophgram/internal/server/identity"
	"github.com/dmitrijs2005/gophgram/internal/server/ledger"
	"github.com/dmitrijs2005/gophgram/internal/server/presence"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	dir        *identity.Directory
	ledger     *ledger.Ledger
	transport  *presence.Transport
	inboxLimit int
	log        logging.Logger
}

// NewHandler creates a Handler over the core components.
func NewHandler(dir *identity.Directory, l *ledger.Ledger, tr *presence.Transport, inboxLimit int, log logging.Logger) *Handler {
	return &Handler{
		dir:        dir,
		ledger:     l,
		transport:  tr,
		inboxLimit: inboxLimit,
		log:        log.With("component", "api"),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// fail maps core sentinel errors onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrMissingUsername),
		errors.Is(err, common.ErrWeakPassword),
		errors.Is(err, common.ErrMissingPublicKey),
		errors.Is(err, common.ErrEmptyContent):
		h.Error(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		h.Error(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, common.ErrorNotFound):
		h.Error(w, http.StatusNotFound, err.Error())

	case errors.Is(err, common.ErrUsernameTaken),
		errors.Is(err, common.ErrWrappedKeySet),
		errors.Is(err, common.ErrInvalidTransition):
		h.Error(w, http.StatusConflict, err.Error())

	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// messageJSON is the transport shape of one ledger entry. From is the
// sender's username, resolved at serialization time. Timestamps are epoch
// milliseconds, matching the push-channel payloads.
type messageJSON struct {
	MessageID   string `json:"messageId"`
	From        string `json:"from"`
	FromUserID  string `json:"fromUserId"`
	ToUsername  string `json:"toUsername"`
	Content     string `json:"content"`
	Status      string `json:"status"`
	SentAt      int64  `json:"sentAt"`
	DeliveredAt int64  `json:"deliveredAt,omitempty"`
	ReadAt      int64  `json:"readAt,omitempty"`
}

func unixMilliOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func (h *Handler) toMessageJSON(m *ledger.Message) messageJSON {
	from := ""
	if acct := h.dir.GetByID(m.FromUserID); acct != nil {
		from = acct.Username
	}
	return messageJSON{
		MessageID:   m.MessageID,
		From:        from,
		FromUserID:  m.FromUserID,
		ToUsername:  m.ToUsername,
		Content:     m.Content,
		Status:      string(m.Status),
		SentAt:      m.SentAt.UnixMilli(),
		DeliveredAt: unixMilliOrZero(m.DeliveredAt),
		ReadAt:      unixMilliOrZero(m.ReadAt),
	}
}
