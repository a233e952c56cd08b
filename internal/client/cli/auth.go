package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/gophgram/internal/common"
	"github.com/dmitrijs2005/gophgram/internal/cryptox"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password, generates a fresh RSA
// keypair, creates the account with the public half, and backs the private
// half up to the server wrapped under the password. The plaintext private
// key never leaves the process.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	kp, err := a.keys.GenerateKeyPair()
	if err != nil {
		return err
	}

	publicKey, err := cryptox.ExportPublicKey(kp.Public)
	if err != nil {
		return err
	}

	session, err := a.api.Register(ctx, userName, string(password), publicKey)
	if err != nil {
		a.keys.ClearActiveKeyPair()
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	wrapped, err := cryptox.WrapPrivateKey(kp.Private, password)
	if err != nil {
		return err
	}
	if err := a.api.StoreWrappedKey(ctx, wrapped); err != nil {
		log.Printf("Key backup failed: %s", err.Error())
		return err
	}

	a.userName = userName
	a.userID = session.UserID
	a.openStream(ctx)

	fmt.Println("Success!")
	return nil
}

// Login prompts for credentials, authenticates, and restores the account
// keypair from the server-held wrapped blob. The wrapping password is the
// account password, so one prompt serves both.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.api.Login(ctx, userName, string(password))
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	if session.WrappedPrivateKey == "" {
		log.Printf("No key backup on the server; incoming messages cannot be decrypted")
		a.keys.ClearActiveKeyPair()
	} else {
		priv, err := cryptox.UnwrapPrivateKey(session.WrappedPrivateKey, password)
		if err != nil {
			log.Printf("Key restore unsuccessful: %s", err.Error())
			return err
		}
		a.keys.SetActiveKeyPair(&cryptox.KeyPair{Public: &priv.PublicKey, Private: priv})
	}

	a.userName = userName
	a.userID = session.UserID
	a.openStream(ctx)

	log.Printf("Login successful")
	return nil
}

// Logout tears down the push stream, revokes the session on the server, and
// drops the in-memory keypair.
func (a *App) Logout(ctx context.Context) error {
	a.closeStream()

	if err := a.api.Logout(ctx); err != nil {
		log.Printf("Logout error: %s", err.Error())
	}

	a.keys.ClearActiveKeyPair()
	a.userName = ""
	a.userID = ""
	return nil
}
