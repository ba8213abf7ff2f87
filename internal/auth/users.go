package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/matthewhartstonge/argon2"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Users is a fixed set of accounts with argon2id password hashes.
type Users struct {
	mu     sync.RWMutex
	hashes map[string][]byte
	argon  argon2.Config
}

func NewUsers(cfg argon2.Config) *Users {
	return &Users{
		hashes: make(map[string][]byte),
		argon:  cfg,
	}
}

// Add stores email with a hash of password, replacing any previous account.
func (u *Users) Add(email, password string) error {
	encoded, err := u.argon.HashEncoded([]byte(password))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.hashes[strings.ToLower(email)] = encoded
	return nil
}

func (u *Users) Authenticate(email, password string) error {
	u.mu.RLock()
	encoded, ok := u.hashes[strings.ToLower(email)]
	u.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}

	match, err := argon2.VerifyEncoded([]byte(password), encoded)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}
	return nil
}

func (u *Users) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.hashes)
}

// ParseUsers reads "email:password" pairs separated by commas, e.g. "a@b.km:secret,c@d.km:pw".
func ParseUsers(cfg argon2.Config, list string) (*Users, error) {
	users := NewUsers(cfg)
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, password, ok := strings.Cut(pair, ":")
		if !ok || email == "" || password == "" {
			return nil, fmt.Errorf("malformed user entry %q", pair)
		}
		if err := users.Add(email, password); err != nil {
			return nil, err
		}
	}
	return users, nil
}
