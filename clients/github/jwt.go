package github

import (
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GitHub caps app JWT lifetime at 10 minutes.
const appAssertionTTL = 10 * time.Minute

// appAssertionSigner produces the signed app-level JWT used to authenticate as
// the GitHub App itself (as opposed to an installation). Assertions are cached
// until close to expiry; regeneration is cheap but there is no reason to sign
// on every call.
type appAssertionSigner struct {
	appID      string
	privateKey *rsa.PrivateKey

	mu        sync.RWMutex
	assertion string
	expiresAt time.Time
}

func newAppAssertionSigner(appID string, privateKeyPEM []byte) (*appAssertionSigner, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid app private key: %w", err)
	}

	return &appAssertionSigner{
		appID:      appID,
		privateKey: privateKey,
	}, nil
}

func (s *appAssertionSigner) getAssertion() (string, error) {
	s.mu.RLock()
	if s.assertion != "" && time.Now().Add(time.Minute).Before(s.expiresAt) {
		defer s.mu.RUnlock()
		return s.assertion, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.assertion != "" && time.Now().Add(time.Minute).Before(s.expiresAt) {
		return s.assertion, nil
	}

	assertion, expiresAt, err := s.sign()
	if err != nil {
		return "", err
	}

	s.assertion = assertion
	s.expiresAt = expiresAt

	return assertion, nil
}

func (s *appAssertionSigner) sign() (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(appAssertionTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iat": jwt.NewNumericDate(now.Add(-60 * time.Second)), // 60 seconds in past for clock drift
		"exp": jwt.NewNumericDate(expiresAt),
		"iss": s.appID,
	})

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign app assertion: %w", err)
	}

	return signed, expiresAt, nil
}
