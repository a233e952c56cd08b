// Package identity implements the account registry: registration, login,
// session issuance and revocation, and presence flags. All state is held in
// memory and owned by a single Directory instance constructed by the server
// composition root.
package identity

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophgram/internal/common"
	"github.com/dmitrijs2005/gophgram/internal/server/auth"
)

// Account is the server-side record of a user. PasswordHash is a bcrypt
// hash; WrappedPrivateKey is an opaque client-side ciphertext the server
// cannot decrypt.
type Account struct {
	UserID            string
	Username          string
	PasswordHash      []byte
	PublicKey         string
	WrappedPrivateKey string
	Online            bool
	LastSeenAt        time.Time
}

// AccountInfo is the public view of an account exposed for recipient and
// key discovery.
type AccountInfo struct {
	UserID     string
	Username   string
	PublicKey  string
	Online     bool
	LastSeenAt time.Time
}

// Session is one issued token. A user may hold several concurrent sessions
// (tabs, devices); logout revokes exactly one.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RegisterResult is returned on successful registration.
type RegisterResult struct {
	UserID       string
	SessionToken string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	UserID            string
	SessionToken      string
	PublicKey         string
	WrappedPrivateKey string
}

// Directory maps usernames to accounts and session tokens to accounts.
type Directory struct {
	mu         sync.RWMutex
	byUsername map[string]*Account
	byID       map[string]*Account
	sessions   map[string]*Session

	jwtSecret  []byte
	sessionTTL time.Duration

	// now is a test seam for session expiry.
	now func() time.Time
}

func NewDirectory(jwtSecret []byte, sessionTTL time.Duration) *Directory {
	return &Directory{
		byUsername: make(map[string]*Account),
		byID:       make(map[string]*Account),
		sessions:   make(map[string]*Session),
		jwtSecret:  jwtSecret,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Register creates an account and its first session. Usernames are trimmed
// and case-sensitive.
func (d *Directory) Register(username, password, publicKey string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, common.ErrMissingUsername
	}
	if len(password) < common.MinPasswordLength {
		return nil, common.ErrWeakPassword
	}
	if publicKey == "" {
		return nil, common.ErrMissingPublicKey
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byUsername[username]; taken {
		return nil, common.ErrUsernameTaken
	}

	acct := &Account{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		PublicKey:    publicKey,
		LastSeenAt:   d.now(),
	}
	d.byUsername[username] = acct
	d.byID[acct.UserID] = acct

	token, err := d.issueSessionLocked(acct.UserID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &RegisterResult{UserID: acct.UserID, SessionToken: token}, nil
}

// Login authenticates a user and issues a new session. Unknown username and
// password mismatch return the same error so usernames cannot be enumerated.
// Prior sessions remain valid.
func (d *Directory) Login(username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)

	d.mu.Lock()
	defer d.mu.Unlock()

	acct, ok := d.byUsername[username]
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	token, err := d.issueSessionLocked(acct.UserID)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &LoginResult{
		UserID:            acct.UserID,
		SessionToken:      token,
		PublicKey:         acct.PublicKey,
		WrappedPrivateKey: acct.WrappedPrivateKey,
	}, nil
}

func (d *Directory) issueSessionLocked(userID string) (string, error) {
	token, err := auth.GenerateToken(userID, d.jwtSecret, d.sessionTTL)
	if err != nil {
		return "", err
	}

	created := d.now()
	d.sessions[token] = &Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: created,
		ExpiresAt: created.Add(d.sessionTTL),
	}
	return token, nil
}

// ResolveSession returns a snapshot of the account owning a live session
// token, or nil when the token is unknown, revoked, or expired. Lookup only,
// no mutation of account state.
func (d *Directory) ResolveSession(token string) *Account {
	if _, err := auth.GetUserIDFromToken(token, d.jwtSecret); err != nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sess, ok := d.sessions[token]
	if !ok {
		return nil
	}
	if d.now().After(sess.ExpiresAt) {
		delete(d.sessions, token)
		return nil
	}

	acct, ok := d.byID[sess.UserID]
	if !ok {
		return nil
	}
	snapshot := *acct
	return &snapshot
}

// SetPresence flips the online flag and refreshes lastSeenAt. Unknown users
// are ignored.
func (d *Directory) SetPresence(userID string, online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	acct, ok := d.byID[userID]
	if !ok {
		return
	}
	acct.Online = online
	acct.LastSeenAt = d.now()
}

// StoreWrappedKey records the client's password-wrapped private key. It is
// set once, right after key generation; later writes are rejected.
func (d *Directory) StoreWrappedKey(userID, wrappedPrivateKey string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	acct, ok := d.byID[userID]
	if !ok {
		return common.ErrorNotFound
	}
	if acct.WrappedPrivateKey != "" {
		return common.ErrWrappedKeySet
	}
	acct.WrappedPrivateKey = wrappedPrivateKey
	return nil
}

// ListOthers returns every account except the caller's, sorted by username,
// with the fields needed for recipient and key discovery.
func (d *Directory) ListOthers(excludeUserID string) []AccountInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]AccountInfo, 0, len(d.byID))
	for _, acct := range d.byID {
		if acct.UserID == excludeUserID {
			continue
		}
		out = append(out, AccountInfo{
			UserID:     acct.UserID,
			Username:   acct.Username,
			PublicKey:  acct.PublicKey,
			Online:     acct.Online,
			LastSeenAt: acct.LastSeenAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Logout marks the owning account offline and revokes only the given token;
// other concurrent sessions for the same user remain valid. Unknown tokens
// are a no-op.
func (d *Directory) Logout(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sess, ok := d.sessions[token]
	if !ok {
		return
	}
	delete(d.sessions, token)

	if acct, ok := d.byID[sess.UserID]; ok {
		acct.Online = false
		acct.LastSeenAt = d.now()
	}
}

// LookupUsername resolves a username to a user ID. Used by the delivery
// ledger to verify recipient existence.
func (d *Directory) LookupUsername(username string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acct, ok := d.byUsername[strings.TrimSpace(username)]
	if !ok {
		return "", false
	}
	return acct.UserID, true
}

// GetByID returns a snapshot of an account, or nil.
func (d *Directory) GetByID(userID string) *Account {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acct, ok := d.byID[userID]
	if !ok {
		return nil
	}
	snapshot := *acct
	return &snapshot
}

// Reset wipes all accounts and sessions. Test and shutdown hook.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.byUsername = make(map[string]*Account)
	d.byID = make(map[string]*Account)
	d.sessions = make(map[string]*Session)
}
