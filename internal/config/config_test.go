package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	require.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	require.Equal(t, DefaultServerURL, cfg.ServerURL)
	require.Equal(t, DefaultSTUN, cfg.STUNServer)
	require.Equal(t, DefaultTURNTTL, cfg.TURNTTL)
	require.Empty(t, cfg.TURNServer)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SERVER_URL", "ws://signal.test/ws")
	t.Setenv("STUN_SERVER", "stun:stun.test:3478")
	t.Setenv("TURN_TTL", "30m")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	require.Equal(t, "ws://signal.test/ws", cfg.ServerURL)
	require.Equal(t, "stun:stun.test:3478", cfg.STUNServer)
	require.Equal(t, 30*time.Minute, cfg.TURNTTL)
}

func TestLoadFlagsBeatEnv(t *testing.T) {
	t.Setenv("SERVER_URL", "ws://from-env/ws")
	t.Setenv("TURN_SERVER", "turn:from-env")

	cfg, err := Load(Options{
		ServerURL:  "ws://from-flag/ws",
		TURNServer: "turn:from-flag",
		TURNTTL:    time.Minute,
	})
	require.NoError(t, err)

	require.Equal(t, "ws://from-flag/ws", cfg.ServerURL)
	require.Equal(t, "turn:from-flag", cfg.TURNServer)
	require.Equal(t, time.Minute, cfg.TURNTTL)
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("TURN_TTL", "not-a-duration")

	_, err := Load(Options{})
	require.Error(t, err)
}

func TestICEServers(t *testing.T) {
	cfg, err := Load(Options{
		STUNServer: "stun:stun.test:3478",
		TURNServer: "turn:turn.test:3478",
		TURNUser:   "u",
		TURNPass:   "p",
	})
	require.NoError(t, err)

	servers := cfg.ICEServers()
	require.Len(t, servers, 2)
	require.Equal(t, []string{"stun:stun.test:3478"}, servers[0].URLs)
	require.Equal(t, []string{"turn:turn.test:3478"}, servers[1].URLs)
	require.Equal(t, "u", servers[1].Username)
	require.Equal(t, "p", servers[1].Credential)
}
