// Package session derives a client identity from an inbound request.
//
// The identity lives on the client: it is carried in a cookie sealed with
// nacl/secretbox, so the server keeps no per-session state of its own and a
// client cannot forge or edit its id or name. A cookie that fails to open is
// treated as absent and a fresh identity is minted.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"lanshare/internal/clock"
)

const (
	CookieName         = "lanshare_session"
	DefaultDisplayName = "Anonymous User"
	cookieMaxAge       = 365 * 24 * time.Hour
	maxFlashes         = 8
)

var errBadCookie = errors.New("session cookie cannot be opened")

// Flash is a one-shot status message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// Session is the client side identity plus the small bits of per-client
// state the web UI needs between requests.
type Session struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"n,omitempty"`
	CreatedAt   time.Time `json:"t"`
	RemoteIP    string    `json:"rip,omitempty"`
	RemotePort  string    `json:"rport,omitempty"`
	Flashes     []Flash   `json:"f,omitempty"`
}

// Name returns the display name or the placeholder while none is set.
func (s *Session) Name() string {
	if s.DisplayName == "" {
		return DefaultDisplayName
	}
	return s.DisplayName
}

// AddFlash queues a message, dropping the oldest beyond a small cap.
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
	if len(s.Flashes) > maxFlashes {
		s.Flashes = s.Flashes[len(s.Flashes)-maxFlashes:]
	}
}

// PopFlashes returns and clears the queued messages.
func (s *Session) PopFlashes() []Flash {
	f := s.Flashes
	s.Flashes = nil
	return f
}

// Resolver mints, opens and seals session cookies.
type Resolver struct {
	key    [32]byte
	clock  clock.Clock
	ids    clock.IDGenerator
	secure bool
}

type Options struct {
	// Secret derives the sealing key. Empty means a random key, so every
	// process restart hands out new identities.
	Secret string
	Clock  clock.Clock
	IDs    clock.IDGenerator
	// Secure marks the cookie Secure (only when served over TLS).
	Secure bool
}

func NewResolver(opts Options) (*Resolver, error) {
	r := &Resolver{clock: opts.Clock, ids: opts.IDs, secure: opts.Secure}
	if r.clock == nil {
		r.clock = clock.Real{}
	}
	if r.ids == nil {
		r.ids = clock.UUIDGenerator{}
	}
	if opts.Secret != "" {
		r.key = sha256.Sum256([]byte(opts.Secret))
	} else if _, err := io.ReadFull(rand.Reader, r.key[:]); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return r, nil
}

// Resolve returns the session carried by r. fresh is true when a new
// identity was minted; the caller must then Save it on the response.
func (res *Resolver) Resolve(r *http.Request) (sess *Session, fresh bool) {
	if ck, err := r.Cookie(CookieName); err == nil {
		if s, err := res.open(ck.Value); err == nil && s.ID != "" {
			return s, false
		}
	}
	return &Session{ID: res.ids.New(), CreatedAt: res.clock.Now().UTC()}, true
}

// Save writes sess back to the client.
func (res *Resolver) Save(w http.ResponseWriter, sess *Session) error {
	v, err := res.seal(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    v,
		Path:     "/",
		MaxAge:   int(cookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   res.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (res *Resolver) seal(sess *Session) (string, error) {
	b, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("session nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], b, &nonce, &res.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (res *Resolver) open(v string) (*Session, error) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return nil, errBadCookie
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	b, ok := secretbox.Open(nil, raw[24:], &nonce, &res.key)
	if !ok {
		return nil, errBadCookie
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errBadCookie
	}
	return &s, nil
}
