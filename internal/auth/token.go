// Package auth signs and verifies the per-document request tokens the
// builder presents to the host service, and stores local credentials.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/pageblocks/internal/hostapi"
)

// Action scopes a token to one kind of request.
type Action string

const (
	// ActionBuilder grants opening the builder and applying sections.
	ActionBuilder Action = "builder"
	// ActionPreview grants server preview renders only.
	ActionPreview Action = "preview"
)

// DefaultTTL matches a working day of editing.
const DefaultTTL = 24 * time.Hour

var (
	ErrMissingToken = errors.New("request token is missing")
	ErrInvalidToken = errors.New("invalid request token")
	ErrExpiredToken = errors.New("request token expired")
)

// Signer issues and verifies tokens with an HMAC-SHA256 secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a signer. An empty secret is rejected.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// WithClock replaces the time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// GenerateSecret returns a random secret suitable for NewSigner.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue returns a token for action on documentID valid for ttl.
func (s *Signer) Issue(action Action, documentID string, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	expires := s.now().Add(ttl).Unix()
	payload := string(action) + "|" + documentID + "|" + strconv.FormatInt(expires, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.sign(payload)
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks that token grants action on documentID.
func (s *Signer) Verify(token string, action Action, documentID string) error {
	id, err := s.Document(token, action)
	if err != nil {
		return err
	}
	if id != documentID {
		return ErrInvalidToken
	}
	return nil
}

// Document checks that token grants action and returns the document it
// was issued for.
func (s *Signer) Document(token string, action Action) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidToken
	}
	payload := string(raw)
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return "", ErrInvalidToken
	}
	parts := strings.Split(payload, "|")
	if len(parts) != 3 || Action(parts[0]) != action {
		return "", ErrInvalidToken
	}
	expires, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if s.now().Unix() > expires {
		return "", ErrExpiredToken
	}
	return parts[1], nil
}

// VerifyPreview accepts preview tokens and builder tokens, since the
// builder renders its own preview.
func (s *Signer) VerifyPreview(token, documentID string) error {
	err := s.Verify(token, ActionPreview, documentID)
	if err == nil || errors.Is(err, ErrMissingToken) {
		return err
	}
	if s.Verify(token, ActionBuilder, documentID) == nil {
		return nil
	}
	return err
}

// FromRequest reads the token from the request header, falling back to
// the pb_nonce query parameter used by builder launch links.
func FromRequest(r *http.Request) string {
	if t := r.Header.Get(hostapi.TokenHeader); t != "" {
		return t
	}
	return r.URL.Query().Get("pb_nonce")
}
