// Package auth implements OAuth 2.1 authorization for the MCP server.
// It acts as the authorization server, relaying end-user login to an
// upstream identity provider, and as the resource server guarding /mcp.
// All state is in-memory; everything is invalidated on restart.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/alexjbarnes/todoist-mcp/internal/models"
)

// PendingKind distinguishes the two flows that reach the provider
// callback.
type PendingKind int

const (
	// PendingManual is a human requesting a long-lived API token.
	PendingManual PendingKind = iota + 1
	// PendingRelay is an OAuth client's authorization request in flight.
	PendingRelay
)

// PendingState is stashed under a relay state token while the user is
// at the identity provider. Relay fields are empty for manual states.
type PendingState struct {
	Kind                PendingKind
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Scopes              []string
	OriginalState       string
	CreatedAt           time.Time
}

// AuthCode represents a pending authorization code.
type AuthCode struct {
	Code                string
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	UserID              string
	Scopes              []string
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// PresharedUser is the identity attached to allow-listed tokens.
const PresharedUser = "preshared"

const (
	// maxClients caps the number of registered clients to prevent
	// unbounded growth from unauthenticated registration requests.
	maxClients = 1000

	pendingExpiry = 15 * time.Minute
	codeExpiry    = 10 * time.Minute
	tokenExpiry   = 24 * time.Hour

	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute
)

// Store holds all in-memory OAuth state.
type Store struct {
	mu      sync.RWMutex
	pending map[string]*PendingState       // relay state -> pending request
	codes   map[string]*AuthCode           // code -> AuthCode
	tokens  map[string]*models.OAuthToken  // token -> token info
	clients map[string]*models.OAuthClient // client_id -> client
	allow   *AllowList
	now     func() time.Time
	stopGC  chan struct{}
	stop    sync.Once
}

// NewStore creates an empty OAuth store and starts a background
// goroutine that periodically removes expired entries. allow may be
// nil. Call Stop() to clean up the goroutine.
func NewStore(allow *AllowList) *Store {
	s := &Store{
		pending: make(map[string]*PendingState),
		codes:   make(map[string]*AuthCode),
		tokens:  make(map[string]*models.OAuthToken),
		clients: make(map[string]*models.OAuthClient),
		allow:   allow,
		now:     time.Now,
		stopGC:  make(chan struct{}),
	}
	go s.gcLoop()

	return s
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	s.stop.Do(func() { close(s.stopGC) })
}

func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

// cleanup removes all expired entries from the store.
func (s *Store) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, p := range s.pending {
		if now.Sub(p.CreatedAt) > pendingExpiry {
			delete(s.pending, k)
		}
	}

	for k, ac := range s.codes {
		if now.After(ac.ExpiresAt) {
			delete(s.codes, k)
		}
	}

	for k, ti := range s.tokens {
		if ti.Expired(now) {
			delete(s.tokens, k)
		}
	}
}

// SavePending stores a pending authorization under state. CreatedAt is
// set if zero.
func (s *Store) SavePending(state string, p *PendingState) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.pending[state] = p
	s.mu.Unlock()
}

// ConsumePending retrieves and deletes a pending authorization.
// Returns nil if not found or older than the pending TTL.
func (s *Store) ConsumePending(state string) *PendingState {
	if state == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[state]
	if !ok {
		return nil
	}
	delete(s.pending, state)

	if s.now().Sub(p.CreatedAt) > pendingExpiry {
		return nil
	}

	return p
}

// SaveCode stores an authorization code.
func (s *Store) SaveCode(ac *AuthCode) {
	s.mu.Lock()
	s.codes[ac.Code] = ac
	s.mu.Unlock()
}

// ConsumeCode retrieves and deletes an authorization code.
// Returns nil if not found or expired.
func (s *Store) ConsumeCode(code string) *AuthCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	ac, ok := s.codes[code]
	if !ok {
		return nil
	}
	delete(s.codes, code)

	if s.now().After(ac.ExpiresAt) {
		return nil
	}

	return ac
}

// SaveToken stores an access token.
func (s *Store) SaveToken(ti *models.OAuthToken) {
	s.mu.Lock()
	s.tokens[ti.Token] = ti
	s.mu.Unlock()
}

// ValidateToken returns the token's info, or nil if it is unknown or
// expired. Expired tokens are deleted on sight. Tokens on the allow
// list validate with a synthetic non-expiring identity.
func (s *Store) ValidateToken(token string) *models.OAuthToken {
	if token == "" {
		return nil
	}

	now := s.now()

	s.mu.Lock()
	ti, ok := s.tokens[token]
	if ok && ti.Expired(now) {
		delete(s.tokens, token)
		ti, ok = nil, false
	}
	s.mu.Unlock()

	if ok {
		return ti
	}

	if s.allow.Contains(token) {
		return &models.OAuthToken{
			Token:     token,
			UserID:    PresharedUser,
			Scopes:    append([]string(nil), AllowedScopes...),
			Preshared: true,
		}
	}

	return nil
}

// RegisterClient stores a new client registration. Returns false if the
// maximum number of registered clients has been reached.
func (s *Store) RegisterClient(ci *models.OAuthClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) >= maxClients {
		return false
	}

	if ci.IssuedAt.IsZero() {
		ci.IssuedAt = s.now()
	}

	s.clients[ci.ClientID] = ci

	return true
}

// GetClient returns the client info for a given client_id, or nil.
func (s *Store) GetClient(clientID string) *models.OAuthClient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.clients[clientID]
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
