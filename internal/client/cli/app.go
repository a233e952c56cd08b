package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/gophgram/internal/client/client"
	"github.com/dmitrijs2005/gophgram/internal/client/config"
	"github.com/dmitrijs2005/gophgram/internal/cryptox"
	"github.com/dmitrijs2005/gophgram/internal/logging"
	"github.com/dmitrijs2005/gophgram/internal/wire"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// apiClient is the REST surface the CLI needs. The real client.RestClient
// satisfies it; tests provide a stub.
type apiClient interface {
	Token() string
	Register(ctx context.Context, username, password, publicKey string) (*client.Session, error)
	Login(ctx context.Context, username, password string) (*client.Session, error)
	Logout(ctx context.Context) error
	StoreWrappedKey(ctx context.Context, blob string) error
	Users(ctx context.Context) ([]client.User, error)
	Send(ctx context.Context, recipientUsername, content string) (*client.Message, error)
	MarkDelivered(ctx context.Context, messageID string) (*client.Message, error)
	MarkRead(ctx context.Context, messageID string) (*client.Message, error)
	Inbox(ctx context.Context, limit int) ([]client.Message, error)
	UnreadCount(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// pushStream is the live-message surface the CLI needs. The real
// client.ReconnectingClient satisfies it.
type pushStream interface {
	Connect()
	Disconnect()
	State() client.State
}

type App struct {
	config *config.Config
	api    apiClient
	keys   *cryptox.KeyManager
	cipher *cryptox.MessageCipher
	logger logging.Logger

	stream   pushStream
	userName string
	userID   string
	Mode     Mode
	reader   *bufio.Reader

	// Test seam: builds the push stream for a fresh session.
	newStream func(token string, handler client.EventHandler) pushStream
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	app := &App{
		config: c,
		api:    client.NewRestClient(c.ServerURL),
		keys:   cryptox.NewKeyManager(),
		cipher: cryptox.NewMessageCipher(),
		logger: logger,
		reader: bufio.NewReader(os.Stdin),
	}
	app.newStream = func(token string, handler client.EventHandler) pushStream {
		return client.NewReconnectingClient(c.ServerURL, token, handler, logger)
	}
	return app, nil
}

func (a *App) Run(ctx context.Context) {
	a.Root(ctx)
	a.closeStream()
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

// openStream starts the push channel for the current session. Incoming
// messages are decrypted and printed as they arrive, and acknowledged as
// delivered.
func (a *App) openStream(ctx context.Context) {
	a.closeStream()
	a.stream = a.newStream(a.api.Token(), func(ev wire.Event) {
		a.handleEvent(ctx, ev)
	})
	a.stream.Connect()
}

func (a *App) closeStream() {
	if a.stream != nil {
		a.stream.Disconnect()
		a.stream = nil
	}
}

func (a *App) handleEvent(ctx context.Context, ev wire.Event) {
	switch e := ev.(type) {
	case wire.Connected:
		log.Printf("Push channel connected as %s", e.Username)

	case wire.NewMessage:
		text := a.decryptContent(e.Message.Content)
		printlnFn(formatIncoming(e.Message.From, text))

		if _, err := a.api.MarkDelivered(ctx, e.Message.MessageID); err != nil {
			log.Printf("delivery ack failed: %s", err.Error())
		}
	}
}

// decryptContent turns an envelope into plaintext using the active private
// key. Failures render a placeholder rather than crashing the REPL.
func (a *App) decryptContent(content string) string {
	kp := a.keys.ActiveKeyPair()
	if kp == nil {
		return "<no private key: cannot decrypt>"
	}

	env, err := cryptox.ParseEnvelope(content)
	if err != nil {
		return "<malformed envelope>"
	}

	plaintext, err := a.cipher.DecryptWith(env, kp.Private)
	if err != nil {
		return "<undecryptable>"
	}
	return string(plaintext)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.api.Ping(pingCtx)
			cancel()

			if err != nil {
				if a.Mode == ModeOnline {
					a.setMode(ModeOffline)
				}
			} else {
				if a.Mode != ModeOnline {
					a.setMode(ModeOnline)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
