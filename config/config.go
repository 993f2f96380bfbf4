/*
Package config loads server configuration from a TOML file.

PURPOSE:
  One small, explicit configuration surface for the server binary: the
  listen address, the SQLite path, CORS origins, and the background
  scheduler cadence. Everything account-level (credit limits, rates,
  fees) is per-account parameter data, never server configuration.

FILE FORMAT (TOML):

  [server]
  addr = ":8080"
  allowed_origins = ["http://localhost:5173"]

  [database]
  path = "cardengine.db"

  [scheduler]
  enabled = true
  check_interval_minutes = 60

A missing file yields the defaults; a malformed file is an error.
*/
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    Server    `toml:"server"`
	Database  Database  `toml:"database"`
	Scheduler Scheduler `toml:"scheduler"`
}

type Server struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Database struct {
	Path string `toml:"path"`
}

type Scheduler struct {
	Enabled              bool `toml:"enabled"`
	CheckIntervalMinutes int  `toml:"check_interval_minutes"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: Database{Path: "cardengine.db"},
		Scheduler: Scheduler{
			Enabled:              true,
			CheckIntervalMinutes: 60,
		},
	}
}

// Load reads a TOML file over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
