package statebind

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds client configuration. Only PageURL is required.
type Config struct {
	// Where the page is served, e.g. "https://app.example:8443/".
	PageURL string `envconfig:"PAGE_URL"`

	// Pause between a detected close and the next connection attempt.
	ReconnectDelay time.Duration `envconfig:"RECONNECT_DELAY" default:"3s"`

	// Websocket handshake timeout; 0 = none.
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT"`

	// Optional extra root CA (PEM) for https pages and wss.
	CAPath string `envconfig:"CA_PATH"`

	MaxLogEntries int `envconfig:"MAX_LOG_ENTRIES" default:"100"`
}

// Validate checks if all required config fields are present.
func (c Config) Validate() error {
	if c.PageURL == "" {
		return fmt.Errorf("PageURL required")
	}
	u, err := url.Parse(c.PageURL)
	if err != nil {
		return fmt.Errorf("PageURL invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PageURL must be http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("PageURL must include a host")
	}
	if c.ReconnectDelay < 0 {
		return fmt.Errorf("ReconnectDelay must not be negative")
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("HandshakeTimeout must not be negative")
	}
	if c.MaxLogEntries < 0 {
		return fmt.Errorf("MaxLogEntries must not be negative")
	}
	return nil
}

// LoadConfig reads STATEBIND_* environment variables.
func LoadConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("statebind", &config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
