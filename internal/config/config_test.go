package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHAT_SCHEME", "CHAT_HOST", "CHAT_PORT", "CHAT_PATH",
		"CHAT_HANDSHAKE_TIMEOUT", "CHAT_WRITE_TIMEOUT", "CHAT_HTTP_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint(), cfg.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Transport.HandshakeTimeout)
	assert.Equal(t, 10*time.Second, cfg.Transport.WriteTimeout)
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, zerolog.InfoLevel, cfg.Log.ZerologLevel())
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000/ws/client-7", DefaultEndpoint().URL("client-7"))

	custom := EndpointConfig{Scheme: "wss", Host: "chat.example.com", Port: 443, Path: "/ws/"}
	assert.Equal(t, "wss://chat.example.com:443/ws/abc", custom.URL("abc"))
}

func TestLoadEndpointOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_HOST", "10.0.0.5")
	t.Setenv("CHAT_PORT", "9000")
	t.Setenv("CHAT_PATH", "socket")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:9000/socket/client-1", cfg.Endpoint.URL("client-1"))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"CHAT_SCHEME":            "http",
		"CHAT_PORT":              "70000",
		"CHAT_HOST":              "bad host",
		"CHAT_WRITE_TIMEOUT":     "soon",
		"CHAT_HANDSHAKE_TIMEOUT": "-1",
		"CHAT_HTTP_ADDR":         "127.0.0.1: 80",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestServerAddrAcceptsHostPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
}

func TestZerologLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"DEBUG":    zerolog.DebugLevel,
		" trace ":  zerolog.TraceLevel,
		"warn":     zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"loud":     zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
	}
	for raw, want := range cases {
		assert.Equal(t, want, LogConfig{Level: raw}.ZerologLevel(), "level %q", raw)
	}
}
