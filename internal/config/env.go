package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvDatabaseURL = "FERRUMWEB_DATABASE_URL"
	EnvUserAgent   = "FERRUMWEB_USER_AGENT"
	EnvDBDir       = "FERRUMWEB_DB_DIR"
	EnvProxy       = "FERRUMWEB_PROXY"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored; with no arguments ".env" in the current
// directory is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values with FERRUMWEB_* environment
// variables. It is applied after defaults and before CLI flags.
func (c *Config) ApplyEnv() {
	c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		c.DatabaseURL = v
	}
	if v, ok := lookup(EnvUserAgent); ok && v != "" {
		c.UserAgent = v
	}
	if v, ok := lookup(EnvDBDir); ok && v != "" {
		c.DBDir = v
	}
	if v, ok := lookup(EnvProxy); ok && v != "" {
		c.ProxyAddress = v
	}
}
