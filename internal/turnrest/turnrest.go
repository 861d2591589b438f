// Package turnrest mints coturn-compatible TURN REST credentials for
// the /turn endpoint consumed by participants before negotiation.
//
// Algorithm (draft-uberti-behave-turn-rest):
//
//	username = <unix_expiry_timestamp>:<session_id>
//	password = base64(hmac_sha1(shared_secret, username))
package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Credentials is the /turn response body. Field names are the contract
// the negotiation client consumes.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TURN     string `json:"turn"`
	TTL      int64  `json:"ttl"`
}

// Generator produces time-limited credentials for one TURN server.
type Generator struct {
	sharedSecret []byte
	turnURI      string
	ttl          time.Duration

	now       func() time.Time
	sessionID func() (string, error)
}

// Config configures a Generator. Now and SessionID exist for tests and
// default to the wall clock and crypto/rand.
type Config struct {
	SharedSecret string
	TURNURI      string
	TTL          time.Duration
	Now          func() time.Time
	SessionID    func() (string, error)
}

// NewGenerator validates the config and builds a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TURNURI == "" {
		return nil, errors.New("TURN URI is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("TTL must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionID == nil {
		cfg.SessionID = randomSessionID
	}
	return &Generator{
		sharedSecret: []byte(cfg.SharedSecret),
		turnURI:      cfg.TURNURI,
		ttl:          cfg.TTL,
		now:          cfg.Now,
		sessionID:    cfg.SessionID,
	}, nil
}

// Generate mints credentials for the given session identifier.
func (g *Generator) Generate(sessionID string) (Credentials, error) {
	if sessionID == "" {
		return Credentials{}, errors.New("session id is required")
	}
	if strings.Contains(sessionID, ":") {
		return Credentials{}, errors.New("session id must not contain ':'")
	}

	expiry := g.now().UTC().Unix() + int64(g.ttl.Seconds())
	username := fmt.Sprintf("%d:%s", expiry, sessionID)

	mac := hmac.New(sha1.New, g.sharedSecret)
	mac.Write([]byte(username))

	return Credentials{
		Username: username,
		Password: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		TURN:     g.turnURI,
		TTL:      int64(g.ttl.Seconds()),
	}, nil
}

// GenerateRandom mints credentials for a fresh random session identifier.
func (g *Generator) GenerateRandom() (Credentials, error) {
	id, err := g.sessionID()
	if err != nil {
		return Credentials{}, err
	}
	return g.Generate(id)
}

func randomSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
