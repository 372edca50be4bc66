package config

import (
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig configures bargainctl.
type ClientConfig struct {
	APIURL       string
	TokenFile    string
	PollInterval time.Duration
	LogLevel     string
}

// LoadClient reads the CLI's settings; flags override them.
func LoadClient() (ClientConfig, error) {
	_ = godotenv.Load()

	cfg := ClientConfig{
		APIURL:    getEnv("BARGAIN_API_URL", "http://localhost:8080"),
		TokenFile: getEnv("BARGAIN_TOKEN_FILE", ""),
		LogLevel:  getEnv("BARGAIN_LOG_LEVEL", "WARN"),
	}
	var err error
	if cfg.PollInterval, err = getDuration("BARGAIN_POLL_INTERVAL", 4*time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}
