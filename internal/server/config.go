package server

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the server configuration. CLI flags fill the listener
// fields; everything else comes from the environment (a local .env file
// is honored, real environment variables win).
type Config struct {
	// Listener (from CLI flags).
	Host            string
	Port            int
	CertFile        string
	KeyFile         string
	MetricsInterval int    // seconds, 0 disables the ticker
	MetricsAddr     string // optional promhttp listener, empty disables

	// Environment.
	Tokens    string `env:"CMDCHAT_TOKENS"`
	LogLevel  string `env:"CMDCHAT_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CMDCHAT_LOG_FORMAT" envDefault:"json"`

	// Accept-side connection rate limiting.
	ConnRateLimitEnabled bool    `env:"CMDCHAT_CONN_RATE_LIMIT" envDefault:"true"`
	ConnRateIPBurst      int     `env:"CMDCHAT_CONN_RATE_IP_BURST" envDefault:"10"`
	ConnRateIPRate       float64 `env:"CMDCHAT_CONN_RATE_IP_RATE" envDefault:"1"`
	ConnRateGlobalBurst  int     `env:"CMDCHAT_CONN_RATE_GLOBAL_BURST" envDefault:"300"`
	ConnRateGlobalRate   float64 `env:"CMDCHAT_CONN_RATE_GLOBAL_RATE" envDefault:"50"`

	// MetricsJSON mirrors the presence of CMDCHAT_METRICS_JSON: when the
	// variable is set the metrics ticker prints one JSON object per tick
	// on stdout instead of a log line.
	MetricsJSON bool `env:"-"`
}

// LoadConfig reads the environment into a Config. A missing .env file is
// not an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	_, cfg.MetricsJSON = os.LookupEnv("CMDCHAT_METRICS_JSON")
	return cfg, nil
}

// TokenSet returns the allowed-token set parsed from CMDCHAT_TOKENS.
// An empty set disables authentication.
func (c *Config) TokenSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Split(c.Tokens, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}
