package cli

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log"
	"os"
	"time"
)

func formatIncoming(from, text string) string {
	return fmt.Sprintf("[%s] %s", from, text)
}

// Users lists every other account with its presence.
func (a *App) Users(ctx context.Context) error {
	users, err := a.api.Users(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	if len(users) == 0 {
		fmt.Println("No other users yet")
		return nil
	}

	for _, u := range users {
		status := "offline"
		if u.Online {
			status = "online"
		}
		fmt.Printf("%s (%s)\n", u.Username, status)

		// Cache the key while we have it.
		if err := a.cipher.StoreRecipientKey(u.Username, u.PublicKey); err != nil {
			log.Printf("skipping bad public key for %s: %s", u.Username, err.Error())
		}
	}
	return nil
}

// recipientKey returns the cached public key for username, fetching the
// directory on a cache miss.
func (a *App) recipientKey(ctx context.Context, username string) (*rsa.PublicKey, error) {
	if key, ok := a.cipher.RecipientKey(username); ok {
		return key, nil
	}

	users, err := a.api.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username == username {
			if err := a.cipher.StoreRecipientKey(u.Username, u.PublicKey); err != nil {
				return nil, err
			}
			break
		}
	}

	key, ok := a.cipher.RecipientKey(username)
	if !ok {
		return nil, fmt.Errorf("no public key for %q", username)
	}
	return key, nil
}

// Send prompts for a recipient and message text, encrypts the text for the
// recipient's public key, and submits the opaque envelope.
func (a *App) Send(ctx context.Context) error {
	recipient, err := getSimpleText(a.reader, "Send to", os.Stdout)
	if err != nil {
		return err
	}

	text, err := getSimpleText(a.reader, "Message", os.Stdout)
	if err != nil {
		return err
	}

	key, err := a.recipientKey(ctx, recipient)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	envelope, err := a.cipher.EncryptFor([]byte(text), key)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	content, err := envelope.Marshal()
	if err != nil {
		return err
	}

	sent, err := a.api.Send(ctx, recipient, content)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	fmt.Printf("Sent %s (%s)\n", sent.MessageID, sent.Status)
	return nil
}

// Inbox prints recent messages, newest first, decrypting each envelope
// locally.
func (a *App) Inbox(ctx context.Context) error {
	messages, err := a.api.Inbox(ctx, 0)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	if len(messages) == 0 {
		fmt.Println("Inbox is empty")
		return nil
	}

	for _, m := range messages {
		sentAt := time.UnixMilli(m.SentAt).Format("2006-01-02 15:04:05")
		fmt.Printf("%s  %s  [%s] %s: %s\n", m.MessageID, sentAt, m.Status, m.From, a.decryptContent(m.Content))

		// Anything we are only now seeing gets acknowledged.
		if m.Status == "sent" {
			if _, err := a.api.MarkDelivered(ctx, m.MessageID); err != nil {
				log.Printf("delivery ack failed: %s", err.Error())
			}
		}
	}
	return nil
}

// Read prompts for a message ID and marks it read.
func (a *App) Read(ctx context.Context) error {
	messageID, err := getSimpleText(a.reader, "Message ID", os.Stdout)
	if err != nil {
		return err
	}

	m, err := a.api.MarkRead(ctx, messageID)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	fmt.Printf("Message %s is now %s\n", m.MessageID, m.Status)
	return nil
}

// Unread prints the unread-message count.
func (a *App) Unread(ctx context.Context) error {
	count, err := a.api.UnreadCount(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	fmt.Printf("Unread messages: %d\n", count)
	return nil
}
