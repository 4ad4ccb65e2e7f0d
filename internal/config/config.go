package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config aggregates the client settings.
type Config struct {
	Endpoint  EndpointConfig
	Transport TransportConfig
	Server    ServerConfig
	Log       LogConfig
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	endpoint, err := loadEndpointConfig()
	if err != nil {
		return nil, err
	}

	transport, err := loadTransportConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Endpoint:  endpoint,
		Transport: transport,
		Server:    server,
		Log:       LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}, nil
}

// EndpointConfig is the fixed chat server address.
type EndpointConfig struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// DefaultEndpoint is ws://localhost:8000/ws.
func DefaultEndpoint() EndpointConfig {
	return EndpointConfig{Scheme: "ws", Host: "localhost", Port: 8000, Path: "/ws"}
}

// URL builds scheme://host:port/ws/{identity}.
func (c EndpointConfig) URL(identity string) string {
	u := url.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   strings.TrimRight(c.Path, "/") + "/" + identity,
	}
	return u.String()
}

func loadEndpointConfig() (EndpointConfig, error) {
	def := DefaultEndpoint()

	scheme := strings.ToLower(getEnvOrDefault("CHAT_SCHEME", def.Scheme))
	if scheme != "ws" && scheme != "wss" {
		return EndpointConfig{}, fmt.Errorf("invalid CHAT_SCHEME value: %q", scheme)
	}

	host := getEnvOrDefault("CHAT_HOST", def.Host)
	if strings.ContainsAny(host, " /") {
		return EndpointConfig{}, fmt.Errorf("invalid CHAT_HOST value: %q", host)
	}

	port := def.Port
	if override, err := parseOptionalIntEnv("CHAT_PORT"); err != nil {
		return EndpointConfig{}, err
	} else if override != nil {
		if *override < 1 || *override > 65535 {
			return EndpointConfig{}, fmt.Errorf("invalid CHAT_PORT value: %d", *override)
		}
		port = *override
	}

	path := getEnvOrDefault("CHAT_PATH", def.Path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return EndpointConfig{Scheme: scheme, Host: host, Port: port, Path: path}, nil
}

// TransportConfig holds the WebSocket deadlines.
type TransportConfig struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func loadTransportConfig() (TransportConfig, error) {
	handshake, err := parseSecondsEnv("CHAT_HANDSHAKE_TIMEOUT", 10)
	if err != nil {
		return TransportConfig{}, err
	}

	write, err := parseSecondsEnv("CHAT_WRITE_TIMEOUT", 10)
	if err != nil {
		return TransportConfig{}, err
	}

	return TransportConfig{HandshakeTimeout: handshake, WriteTimeout: write}, nil
}

// ServerConfig describes the local HTTP listener used in headless mode.
type ServerConfig struct {
	Addr string
}

// loadServerConfig parses the listen address.
func loadServerConfig() (ServerConfig, error) {
	addr := getEnvOrDefault("CHAT_HTTP_ADDR", "8081")

	if strings.Contains(addr, " ") {
		return ServerConfig{}, fmt.Errorf("invalid CHAT_HTTP_ADDR value: %q", addr)
	}

	if strings.Contains(addr, ":") {
		// accept ":8081" or "127.0.0.1:8081" as-is
		return ServerConfig{Addr: addr}, nil
	}

	return ServerConfig{Addr: ":" + addr}, nil
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string
}

// ZerologLevel maps Level onto a zerolog level and falls back to info.
func (c LogConfig) ZerologLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseSecondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	seconds, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if seconds == nil {
		return time.Duration(defaultSeconds) * time.Second, nil
	}
	if *seconds < 0 {
		return 0, fmt.Errorf("invalid %s value: %d", key, *seconds)
	}
	return time.Duration(*seconds) * time.Second, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
