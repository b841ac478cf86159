package gateway

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"wattwise/internal/domain"
)

// ClientCredential is one registered client of the tool service. The
// secret is stored as a bcrypt hash, never in plain text.
type ClientCredential struct {
	ClientID   string
	SecretHash []byte
}

// NewClientCredential hashes a plain secret for registration.
func NewClientCredential(clientID, secret string) (ClientCredential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return ClientCredential{}, fmt.Errorf("hash client secret: %w", err)
	}
	return ClientCredential{ClientID: clientID, SecretHash: hash}, nil
}

// KeyIssuer verifies client credentials and issues API keys. Issued keys
// are held in memory; restarting the service invalidates them, which is
// fine because clients regenerate on 401.
type KeyIssuer struct {
	mu      sync.RWMutex
	clients map[string]ClientCredential
	keys    map[string]string // api key -> client id
}

// NewKeyIssuer builds an issuer from registered credentials.
func NewKeyIssuer(creds []ClientCredential) *KeyIssuer {
	clients := make(map[string]ClientCredential, len(creds))
	for _, c := range creds {
		clients[c.ClientID] = c
	}
	return &KeyIssuer{
		clients: clients,
		keys:    make(map[string]string),
	}
}

// Issue verifies the client secret and mints a new API key.
func (k *KeyIssuer) Issue(clientID, secret string) (string, error) {
	k.mu.RLock()
	cred, ok := k.clients[clientID]
	k.mu.RUnlock()
	if !ok {
		// Burn comparable time for unknown clients so lookups are not
		// distinguishable from bad secrets.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return "", domain.NewDomainError("KeyIssuer.Issue", domain.ErrAuthRejected, "unknown client")
	}

	if err := bcrypt.CompareHashAndPassword(cred.SecretHash, []byte(secret)); err != nil {
		return "", domain.NewDomainError("KeyIssuer.Issue", domain.ErrAuthRejected, "bad secret")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	key := "ww_" + hex.EncodeToString(raw)

	k.mu.Lock()
	k.keys[key] = clientID
	k.mu.Unlock()

	return key, nil
}

// Verify reports the client id behind an API key. Constant-time comparison
// prevents timing probes against issued keys.
func (k *KeyIssuer) Verify(apiKey string) (string, bool) {
	keyBytes := []byte(apiKey)

	k.mu.RLock()
	defer k.mu.RUnlock()
	for key, clientID := range k.keys {
		if subtle.ConstantTimeCompare(keyBytes, []byte(key)) == 1 {
			return clientID, true
		}
	}
	return "", false
}

// Revoke invalidates every key issued to a client.
func (k *KeyIssuer) Revoke(clientID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, id := range k.keys {
		if id == clientID {
			delete(k.keys, key)
		}
	}
}

// dummyHash is a valid bcrypt hash compared against for unknown clients.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("wattwise-dummy"), bcrypt.DefaultCost)
