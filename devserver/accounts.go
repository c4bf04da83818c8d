package devserver

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

type account struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	Salt         []byte
	PasswordHash []byte
}

// accountStore is the in-memory account registry.
type accountStore struct {
	mu     sync.RWMutex
	nextID int64
	byMail map[string]*account
}

func newAccountStore() *accountStore {
	return &accountStore{nextID: 1, byMail: make(map[string]*account)}
}

const (
	argonTime      = 1
	argonMemoryKiB = 64 * 1024
	argonThreads   = 4
	argonKeyLen    = 32
)

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemoryKiB, argonThreads, argonKeyLen)
}

func (s *accountStore) create(name, email, password string) (*account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byMail[email]; exists {
		return nil, fmt.Errorf("account already exists")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	acct := &account{
		ID:           s.nextID,
		Email:        email,
		Name:         name,
		Role:         "manager",
		Salt:         salt,
		PasswordHash: hashPassword(password, salt),
	}
	s.nextID++
	s.byMail[email] = acct
	return acct, nil
}

func (s *accountStore) authenticate(email, password string) (*account, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	acct, ok := s.byMail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	candidate := hashPassword(password, acct.Salt)
	if subtle.ConstantTimeCompare(candidate, acct.PasswordHash) != 1 {
		return nil, false
	}
	return acct, true
}

func (s *accountStore) byID(id int64) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acct := range s.byMail {
		if acct.ID == id {
			return acct, true
		}
	}
	return nil, false
}

func (a *account) user() User {
	return User{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}
