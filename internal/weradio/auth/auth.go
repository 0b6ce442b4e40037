// Package auth holds the station credential on behalf of the API client.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/tessro/weradio/internal/weradio/client"
)

// Authenticator is the backend surface used to sign in.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*client.LoginResult, error)
	Verify(ctx context.Context) (*client.VerifyResult, error)
}

// Login exchanges credentials for a token and saves it.
func Login(ctx context.Context, api Authenticator, store *Store, username, password string) (*Credential, error) {
	res, err := api.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	cred := &Credential{
		Token:    res.Token,
		Username: res.User.Username,
		Role:     res.User.Role,
		SavedAt:  time.Now(),
	}
	if cred.Username == "" {
		cred.Username = username
	}
	if err := store.Save(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Status reports whether the held token is still accepted by the backend.
func Status(ctx context.Context, api Authenticator, store *Store) (*client.VerifyResult, error) {
	if !store.IsAuthenticated() {
		return &client.VerifyResult{Valid: false, Error: "not logged in"}, nil
	}
	res, err := api.Verify(ctx)
	if client.IsUnauthorized(err) {
		return &client.VerifyResult{Valid: false, Error: client.UserMessage(err, "token rejected")}, nil
	}
	return res, err
}
