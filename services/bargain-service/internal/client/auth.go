package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// TokenVerifier resolves a bearer token to its user id. *Client implements
// it against GET /auth/me.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// AuthSession holds the signed-in user's token and id. It is created once,
// hydrated with Init, and handed to the Client by reference.
type AuthSession struct {
	path string

	mu     sync.RWMutex
	token  string
	userID string
}

type storedToken struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// NewAuthSession keeps its token in the file at path. An empty path keeps
// it in memory only.
func NewAuthSession(path string) *AuthSession {
	return &AuthSession{path: path}
}

// DefaultTokenPath is ~/.farmart/token.json.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".farmart", "token.json")
}

func (a *AuthSession) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *AuthSession) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

func (a *AuthSession) LoggedIn() bool {
	return a.Token() != ""
}

// Init hydrates the session from its token file and verifies the token. A
// token the server rejects is cleared; a verification that fails for any
// other reason keeps the token and returns the error.
func (a *AuthSession) Init(ctx context.Context, verifier TokenVerifier) error {
	stored, err := a.load()
	if err != nil || stored.Token == "" {
		return err
	}
	userID, err := verifier.VerifyToken(ctx, stored.Token)
	if err != nil {
		if IsUnauthorized(err) {
			return a.Logout()
		}
		a.set(stored.Token, stored.UserID)
		return err
	}
	a.set(stored.Token, userID)
	if userID != stored.UserID {
		return a.save()
	}
	return nil
}

// Login verifies token and, when accepted, stores it.
func (a *AuthSession) Login(ctx context.Context, verifier TokenVerifier, token string) error {
	userID, err := verifier.VerifyToken(ctx, token)
	if err != nil {
		return err
	}
	a.set(token, userID)
	return a.save()
}

// Logout clears the token from memory and from its file.
func (a *AuthSession) Logout() error {
	a.set("", "")
	if a.path == "" {
		return nil
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (a *AuthSession) set(token, userID string) {
	a.mu.Lock()
	a.token, a.userID = token, userID
	a.mu.Unlock()
}

func (a *AuthSession) load() (storedToken, error) {
	var st storedToken
	if a.path == "" {
		return st, nil
	}
	data, err := os.ReadFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read token file: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		// unreadable file: treat as signed out
		return storedToken{}, a.Logout()
	}
	return st, nil
}

func (a *AuthSession) save() error {
	if a.path == "" {
		return nil
	}
	a.mu.RLock()
	data, err := json.Marshal(storedToken{Token: a.token, UserID: a.userID})
	a.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
