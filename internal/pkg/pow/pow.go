/*
Package pow implements the Proof-of-Work (PoW) challenge that guards the public admission
form.

A visitor fetches a challenge, searches for a counter whose SHA-256 over nonce+counter
starts with the required number of hex zeros, and exchanges the solution for a short-lived
single-use proof token. The form submission carries the token in the X-PoW-Token header.
*/
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenHeaderKey is the HTTP header key used by the client to send the Proof Token.
	TokenHeaderKey = "X-PoW-Token"

	// ProofTokenDuration is the validity period for the Proof Token issued after successful PoW validation.
	ProofTokenDuration = 2 * time.Minute

	// NonceExpiryDuration is the validity period for the challenge Nonce.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	ErrNonceInvalid   = errors.New("nonce expired or invalid")
	ErrProofTooWeak   = errors.New("proof does not meet difficulty requirement")
	ErrNonceConsumed  = errors.New("nonce consumed by concurrent request")
	ErrTokenNotUsable = errors.New("proof token missing, expired or already used")
)

// Challenge is what a client needs to start solving.
type Challenge struct {
	Nonce      string    `json:"nonce"`
	Difficulty int       `json:"difficulty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Manager tracks outstanding nonces and issued proof tokens. It is safe for concurrent use.
type Manager struct {
	difficulty int

	nonceStore map[string]time.Time
	tokenStore map[string]time.Time
	mu         sync.Mutex

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager and starts the background sweep of expired entries.
func NewManager(difficulty int) *Manager {
	m := &Manager{
		difficulty: difficulty,
		nonceStore: make(map[string]time.Time),
		tokenStore: make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go m.cleanupExpiredEntries()

	return m
}

// Stop ends the background sweep.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// NewChallenge issues a fresh nonce.
func (m *Manager) NewChallenge() Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := uuid.NewString()
	expires := m.now().Add(NonceExpiryDuration)
	m.nonceStore[nonce] = expires

	return Challenge{Nonce: nonce, Difficulty: m.difficulty, ExpiresAt: expires}
}

// Meets reports whether sha256(nonce+counter) has the required leading hex zeros.
func Meets(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// ValidateProof checks a solution and, on success, consumes the nonce and returns a proof token.
func (m *Manager) ValidateProof(nonce, counter string) (string, error) {
	m.mu.Lock()
	expiryTime, ok := m.nonceStore[nonce]
	m.mu.Unlock()

	if !ok || m.now().After(expiryTime) {
		return "", ErrNonceInvalid
	}

	if !Meets(nonce, counter, m.difficulty) {
		return "", ErrProofTooWeak
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, stillExists := m.nonceStore[nonce]; !stillExists {
		return "", ErrNonceConsumed
	}
	delete(m.nonceStore, nonce)

	token := uuid.NewString()
	m.tokenStore[token] = m.now().Add(ProofTokenDuration)
	return token, nil
}

// ConsumeProofToken accepts the token carried by r exactly once.
// The token is read from the X-PoW-Token header or the pow_token query parameter.
func (m *Manager) ConsumeProofToken(r *http.Request) error {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		token = r.URL.Query().Get("pow_token")
	}
	if token == "" {
		return ErrTokenNotUsable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiryTime, ok := m.tokenStore[token]
	if !ok {
		return ErrTokenNotUsable
	}
	delete(m.tokenStore, token)

	if m.now().After(expiryTime) {
		return ErrTokenNotUsable
	}
	return nil
}

func (m *Manager) cleanupExpiredEntries() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for nonce, expiry := range m.nonceStore {
		if now.After(expiry) {
			delete(m.nonceStore, nonce)
		}
	}
	for token, expiry := range m.tokenStore {
		if now.After(expiry) {
			delete(m.tokenStore, token)
		}
	}
}
