package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophgram/internal/common"
)

// Session is returned by Register and Login.
type Session struct {
	UserID            string `json:"userId"`
	SessionToken      string `json:"sessionToken"`
	PublicKey         string `json:"publicKey,omitempty"`
	WrappedPrivateKey string `json:"wrappedPrivateKey,omitempty"`
}

// User is a directory entry for another account.
type User struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	PublicKey string `json:"publicKey"`
	Online    bool   `json:"online"`
}

// Message mirrors the server's message representation. Content is the
// opaque encrypted envelope; the server never sees plaintext.
type Message struct {
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

// RestClient talks to the Gophgram HTTP API. The session token is attached
// to every request once set; it is safe for concurrent use.
type RestClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewRestClient(baseURL string) *RestClient {
	return &RestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *RestClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *RestClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// doRequest performs one API call and maps transport and auth failures to
// the package sentinels.
func (c *RestClient) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set(common.SessionTokenHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrUnavailable
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	PublicKey string `json:"publicKey"`
}

// Register creates an account and stores the returned session token on the
// client.
func (c *RestClient) Register(ctx context.Context, username, password, publicKey string) (*Session, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/register", registerRequest{
		Username:  username,
		Password:  password,
		PublicKey: publicKey,
	})
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.SessionToken)
	return &s, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates and stores the returned session token on the client.
// The response carries the account's public key and wrapped private key so
// the caller can restore its keypair.
func (c *RestClient) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/login", loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.SessionToken)
	return &s, nil
}

// Logout revokes the current session token and clears it from the client.
func (c *RestClient) Logout(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/logout", nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

type storeWrappedKeyRequest struct {
	WrappedPrivateKey string `json:"wrappedPrivateKey"`
}

// StoreWrappedKey uploads the password-wrapped private key blob. The server
// accepts it once per account.
func (c *RestClient) StoreWrappedKey(ctx context.Context, blob string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/api/keys/wrapped", storeWrappedKeyRequest{WrappedPrivateKey: blob})
	return err
}

// Users lists every other registered account with its public key and
// presence.
func (c *RestClient) Users(ctx context.Context) ([]User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/users", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

type sendMessageRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// Send submits an encrypted envelope for recipientUsername.
func (c *RestClient) Send(ctx context.Context, recipientUsername, content string) (*Message, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/messages", sendMessageRequest{
		To:      recipientUsername,
		Content: content,
	})
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkDelivered acknowledges receipt of a message addressed to this account.
func (c *RestClient) MarkDelivered(ctx context.Context, messageID string) (*Message, error) {
	return c.markStatus(ctx, messageID, "delivered")
}

// MarkRead marks a delivered message as read.
func (c *RestClient) MarkRead(ctx context.Context, messageID string) (*Message, error) {
	return c.markStatus(ctx, messageID, "read")
}

func (c *RestClient) markStatus(ctx context.Context, messageID, action string) (*Message, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/messages/"+messageID+"/"+action, nil)
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Inbox returns the most recent messages addressed to this account. A limit
// of zero uses the server default.
func (c *RestClient) Inbox(ctx context.Context, limit int) ([]Message, error) {
	path := "/api/messages/inbox"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// UnreadCount returns how many inbox messages have not been read yet.
func (c *RestClient) UnreadCount(ctx context.Context) (int, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/messages/unread", nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Ping probes server reachability via the health endpoint.
func (c *RestClient) Ping(ctx context.Context) error {
	body, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ErrUnavailable
	}
	if resp.Status != "ok" {
		return ErrUnavailable
	}
	return nil
}
