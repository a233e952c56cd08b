package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophgram/internal/logging"
	"github.com/dmitrijs2005/gophgram/internal/server/identity"
	"github.com/dmitrijs2005/gophgram/internal/server/ledger"
	"github.com/dmitrijs2005/gophgram/internal/server/presence"
	"github.com/dmitrijs2005/gophgram/internal/wire"
)

const testPublicKey = "dGVzdC1wdWJsaWMta2V5"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	zl := zerolog.Nop()
	logger := logging.NewZerologLogger(zl)

	dir := identity.NewDirectory([]byte("test-secret"), time.Hour)
	led := ledger.NewLedger(dir)
	tr := presence.NewTransport(dir, logger)
	h := NewHandler(dir, led, tr, 50, logger)

	ts := httptest.NewServer(NewRouter(zl, h, dir))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func registerUser(t *testing.T, ts *httptest.Server, username string) (userID, token string) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/register", "", map[string]string{
		"username":  username,
		"password":  "secret1",
		"publicKey": testPublicKey,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["userId"].(string), body["sessionToken"].(string)
}

func TestRegisterEndpoint(t *testing.T) {
	ts := newTestServer(t)

	userID, token := registerUser(t, ts, "alice")
	assert.NotEmpty(t, userID)
	assert.NotEmpty(t, token)

	// Duplicate username.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/register", "", map[string]string{
		"username": "alice", "password": "secret1", "publicKey": testPublicKey,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "taken")

	// Weak password.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/register", "", map[string]string{
		"username": "bob", "password": "12345", "publicKey": testPublicKey,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing public key.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/register", "", map[string]string{
		"username": "bob", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "alice", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["sessionToken"])
	assert.Equal(t, testPublicKey, body["publicKey"])

	// Unknown user and wrong password share one response shape.
	respUnknown, bodyUnknown := doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "nobody", "password": "secret1",
	})
	respWrong, bodyWrong := doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, respUnknown.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, respWrong.StatusCode)
	assert.Equal(t, bodyUnknown["error"], bodyWrong["error"])
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_RevokesToken(t *testing.T) {
	ts := newTestServer(t)
	_, token := registerUser(t, ts, "alice")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStoreWrappedKey(t *testing.T) {
	ts := newTestServer(t)
	_, token := registerUser(t, ts, "alice")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/keys/wrapped", token, map[string]string{
		"wrappedPrivateKey": "blob-1",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Set once.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/keys/wrapped", token, map[string]string{
		"wrappedPrivateKey": "blob-2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The blob comes back on login, verbatim.
	respLogin, body := doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "alice", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, respLogin.StatusCode)
	assert.Equal(t, "blob-1", body["wrappedPrivateKey"])
}

func TestMessageFlow(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := registerUser(t, ts, "alice")
	_, bobToken := registerUser(t, ts, "bob")

	// Alice sends to Bob.
	resp, sent := doJSON(t, http.MethodPost, ts.URL+"/api/messages", aliceToken, map[string]string{
		"to": "bob", "content": "opaque-envelope",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	messageID := sent["messageId"].(string)
	assert.Equal(t, "sent", sent["status"])
	assert.Equal(t, "alice", sent["from"])

	// Bob polls his inbox and unread count.
	resp, inbox := doJSON(t, http.MethodGet, ts.URL+"/api/messages/inbox", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := inbox["messages"].([]any)
	require.Len(t, messages, 1)

	resp, unread := doJSON(t, http.MethodGet, ts.URL+"/api/messages/unread", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), unread["count"])

	// Delivered acknowledged by the wrong user fails closed.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/messages/"+messageID+"/delivered", aliceToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Read before delivered fails closed.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/messages/"+messageID+"/read", bobToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, delivered := doJSON(t, http.MethodPost, ts.URL+"/api/messages/"+messageID+"/delivered", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delivered", delivered["status"])

	resp, read := doJSON(t, http.MethodPost, ts.URL+"/api/messages/"+messageID+"/read", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "read", read["status"])

	resp, unread = doJSON(t, http.MethodGet, ts.URL+"/api/messages/unread", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), unread["count"])

	// Unknown message IDs are 404, not 500.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/messages/ghost/delivered", bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessage_Validation(t *testing.T) {
	ts := newTestServer(t)
	_, token := registerUser(t, ts, "alice")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/messages", token, map[string]string{
		"to": "nobody", "content": "x",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/messages", token, map[string]string{
		"to": "alice", "content": "  ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListUsers_ShowsPresence(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := registerUser(t, ts, "alice")
	registerUser(t, ts, "bob")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/users", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	users := body["users"].([]any)
	require.Len(t, users, 1)
	bob := users[0].(map[string]any)
	assert.Equal(t, "bob", bob["username"])
	assert.Equal(t, testPublicKey, bob["publicKey"])
	assert.Equal(t, false, bob["online"])
}

// readFrame reads one "data: <JSON>\n\n" frame from the stream.
func readFrame(t *testing.T, r *bufio.Reader) wire.Event {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, wire.FramePrefix), "unexpected line %q", line)
		ev, err := wire.DecodeEvent([]byte(strings.TrimPrefix(line, wire.FramePrefix)))
		require.NoError(t, err)
		return ev
	}
}

func TestStream_PushesLiveMessages(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := registerUser(t, ts, "alice")
	bobID, bobToken := registerUser(t, ts, "bob")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bobToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// Connect ack comes first.
	ev := readFrame(t, reader)
	connected, ok := ev.(wire.Connected)
	require.True(t, ok, "expected connected, got %T", ev)
	assert.Equal(t, bobID, connected.UserID)
	assert.Equal(t, "bob", connected.Username)

	// Wait until the channel is attached (Bob shows as online) before
	// sending, so the push is guaranteed to be live.
	require.Eventually(t, func() bool {
		resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/users", aliceToken, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		users := body["users"].([]any)
		return len(users) == 1 && users[0].(map[string]any)["online"] == true
	}, 3*time.Second, 10*time.Millisecond)

	// Alice sends while Bob is attached.
	respSend, sent := doJSON(t, http.MethodPost, ts.URL+"/api/messages", aliceToken, map[string]string{
		"to": "bob", "content": "opaque-envelope",
	})
	require.Equal(t, http.StatusCreated, respSend.StatusCode)

	ev = readFrame(t, reader)
	nm, ok := ev.(wire.NewMessage)
	require.True(t, ok, "expected new_message, got %T", ev)
	assert.Equal(t, sent["messageId"], nm.Message.MessageID)
	assert.Equal(t, "alice", nm.Message.From)
	assert.Equal(t, "opaque-envelope", nm.Message.Content)
	assert.Equal(t, "sent", nm.Message.Status)

	// Bob shows as online while the stream is up.
	respUsers, usersBody := doJSON(t, http.MethodGet, ts.URL+"/api/users", aliceToken, nil)
	require.Equal(t, http.StatusOK, respUsers.StatusCode)
	users := usersBody["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, true, users[0].(map[string]any)["online"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestInbox_LimitParam(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := registerUser(t, ts, "alice")
	_, bobToken := registerUser(t, ts, "bob")

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/messages", aliceToken, map[string]string{
			"to": "bob", "content": fmt.Sprintf("envelope-%d", i),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/messages/inbox?limit=2", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)

	// Most recent first.
	assert.Equal(t, "envelope-2", messages[0].(map[string]any)["content"])
}

func TestInbox_HugeLimitClamped(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := registerUser(t, ts, "alice")
	_, bobToken := registerUser(t, ts, "bob")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/messages", aliceToken, map[string]string{
		"to": "bob", "content": "envelope",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// An absurd limit is served normally instead of sizing any allocation.
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/messages/inbox?limit=2000000000", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["messages"].([]any), 1)
}
