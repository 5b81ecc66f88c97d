package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Environment overrides. The process environment wins over dotenv files.
const (
	EnvTelegramToken = "TASKY_TELEGRAM_TOKEN"
	EnvUpdateFeedURL = "TASKY_UPDATE_FEED_URL"
	EnvLogLevel      = "TASKY_LOG_LEVEL"
)

// readDotEnv merges files in order; a later file overrides an earlier one.
func readDotEnv(files []string) (map[string]string, error) {
	out := map[string]string{}
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", f, err)
		}
		for k, v := range vals {
			out[k] = v
		}
	}
	return out, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Update.FeedURL, EnvUpdateFeedURL)
	set(&cfg.Logging.Level, EnvLogLevel)
}
