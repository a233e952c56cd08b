package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophgram/internal/server/metrics"
)

// RegisterRequest is the registration request body.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	PublicKey string `json:"publicKey"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	UserID            string `json:"userId"`
	SessionToken      string `json:"sessionToken"`
	PublicKey         string `json:"publicKey,omitempty"`
	WrappedPrivateKey string `json:"wrappedPrivateKey,omitempty"`
}

// Register creates an account and its first session.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.dir.Register(req.Username, req.Password, req.PublicKey)
	if err != nil {
		h.fail(w, err)
		return
	}

	metrics.UsersRegistered.Inc()
	h.JSON(w, http.StatusCreated, SessionResponse{
		UserID:       res.UserID,
		SessionToken: res.SessionToken,
	})
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and issues a new session; previously issued sessions
// stay valid.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.dir.Login(req.Username, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, SessionResponse{
		UserID:            res.UserID,
		SessionToken:      res.SessionToken,
		PublicKey:         res.PublicKey,
		WrappedPrivateKey: res.WrappedPrivateKey,
	})
}

// Logout revokes the presented session token only.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.dir.Logout(sessionTokenFrom(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// StoreWrappedKeyRequest uploads the client's password-wrapped private key.
type StoreWrappedKeyRequest struct {
	WrappedPrivateKey string `json:"wrappedPrivateKey"`
}

// StoreWrappedKey records the wrapped private key, once, after client-side
// key generation. The server cannot decrypt the blob.
func (h *Handler) StoreWrappedKey(w http.ResponseWriter, r *http.Request) {
	var req StoreWrappedKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WrappedPrivateKey == "" {
		h.Error(w, http.StatusBadRequest, "wrappedPrivateKey is required")
		return
	}

	acct := accountFrom(r.Context())
	if err := h.dir.StoreWrappedKey(acct.UserID, req.WrappedPrivateKey); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UserInfo is the public account view for recipient and key discovery.
type UserInfo struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	PublicKey  string    `json:"publicKey"`
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// UsersResponse lists every account except the caller's.
type UsersResponse struct {
	Users []UserInfo `json:"users"`
}

// ListUsers returns the other accounts with their public keys and presence.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())

	others := h.dir.ListOthers(acct.UserID)
	users := make([]UserInfo, 0, len(others))
	for _, o := range others {
		users = append(users, UserInfo{
			UserID:     o.UserID,
			Username:   o.Username,
			PublicKey:  o.PublicKey,
			Online:     o.Online,
			LastSeenAt: o.LastSeenAt,
		})
	}

	h.JSON(w, http.StatusOK, UsersResponse{Users: users})
}
