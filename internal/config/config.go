package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
)

// Default configuration values.
const (
	DefaultListenAddr = ":8081"
	DefaultServerURL  = "ws://127.0.0.1:8081/ws"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultTURNTTL    = time.Hour
)

// Config holds application configuration for both the server and the
// participant client.
type Config struct {
	// ListenAddr is the signaling server listen address (serve).
	ListenAddr string

	// ServerURL is the signaling websocket URL (call).
	ServerURL string

	// ICE configuration.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// TURNCredentialURL is the HTTP endpoint to fetch time-limited TURN
	// credentials from (call).
	TURNCredentialURL string

	// TURNSecret and TURNTTL configure the /turn endpoint (serve). The
	// endpoint is disabled when the secret is empty.
	TURNSecret string
	TURNTTL    time.Duration
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ListenAddr        string
	ServerURL         string
	STUNServer        string
	TURNServer        string
	TURNUser          string
	TURNPass          string
	TURNCredentialURL string
	TURNSecret        string
	TURNTTL           time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ListenAddr:        pick(opts.ListenAddr, "LISTEN_ADDR", DefaultListenAddr),
		ServerURL:         pick(opts.ServerURL, "SERVER_URL", DefaultServerURL),
		STUNServer:        pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:        pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:          pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:          pick(opts.TURNPass, "TURN_PASSWORD", ""),
		TURNCredentialURL: pick(opts.TURNCredentialURL, "TURN_CREDENTIAL_URL", ""),
		TURNSecret:        pick(opts.TURNSecret, "TURN_SECRET", ""),
		TURNTTL:           opts.TURNTTL,
	}

	if cfg.TURNTTL == 0 {
		if v := os.Getenv("TURN_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("parse TURN_TTL: %w", err)
			}
			cfg.TURNTTL = d
		} else {
			cfg.TURNTTL = DefaultTURNTTL
		}
	}

	return cfg, nil
}

// pick resolves one value: flag > env > default.
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

// ICEServers builds the engine's ICE configuration from the STUN server
// and the static TURN server, when one is set.
func (c *Config) ICEServers() []webrtc.ICEServer {
	servers := []webrtc.ICEServer{{URLs: []string{c.STUNServer}}}

	if c.TURNServer != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{c.TURNServer},
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}

	return servers
}
