package statebind

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "minimal", config: Config{PageURL: "http://localhost:8000/"}},
		{name: "secure", config: Config{PageURL: "https://app.example/", ReconnectDelay: time.Second}},
		{name: "missing page", config: Config{}, wantErr: true},
		{name: "websocket page url", config: Config{PageURL: "ws://localhost/"}, wantErr: true},
		{name: "no host", config: Config{PageURL: "http:///x"}, wantErr: true},
		{name: "negative delay", config: Config{PageURL: "http://h/", ReconnectDelay: -1}, wantErr: true},
		{name: "negative handshake", config: Config{PageURL: "http://h/", HandshakeTimeout: -1}, wantErr: true},
		{name: "negative log size", config: Config{PageURL: "http://h/", MaxLogEntries: -1}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("STATEBIND_PAGE_URL", "http://localhost:8000/")

		config, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, Config{
			PageURL:        "http://localhost:8000/",
			ReconnectDelay: 3 * time.Second,
			MaxLogEntries:  100,
		}, config)
	})

	t.Run("custom", func(t *testing.T) {
		t.Setenv("STATEBIND_PAGE_URL", "https://app.example:8443/")
		t.Setenv("STATEBIND_RECONNECT_DELAY", "500ms")
		t.Setenv("STATEBIND_HANDSHAKE_TIMEOUT", "10s")
		t.Setenv("STATEBIND_CA_PATH", "/certs/ca.pem")
		t.Setenv("STATEBIND_MAX_LOG_ENTRIES", "20")

		config, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, Config{
			PageURL:          "https://app.example:8443/",
			ReconnectDelay:   500 * time.Millisecond,
			HandshakeTimeout: 10 * time.Second,
			CAPath:           "/certs/ca.pem",
			MaxLogEntries:    20,
		}, config)
	})

	t.Run("missing page url", func(t *testing.T) {
		t.Setenv("STATEBIND_PAGE_URL", "")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
