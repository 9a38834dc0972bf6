// Package config loads the tracker's TOML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full application configuration.
type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Auth     Auth     `toml:"auth"`
	WhatsApp WhatsApp `toml:"whatsapp"`
	Reminder Reminder `toml:"reminder"`
}

type Server struct {
	Port int `toml:"port"`
}

type Database struct {
	Path string `toml:"path"`
}

type Auth struct {
	// JWTSecret signs session tokens. Required in production; the default
	// exists only so a fresh checkout runs.
	JWTSecret string `toml:"jwt_secret"`
}

type WhatsApp struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Instance string `toml:"instance"`
	APIKey   string `toml:"api_key"`
}

type Reminder struct {
	// Time is "HH:MM" in the configured timezone.
	Time     string `toml:"time"`
	Timezone string `toml:"timezone"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:   Server{Port: 8080},
		Database: Database{Path: "financeiro.db"},
		Auth:     Auth{JWTSecret: "dev-only-secret"},
		Reminder: Reminder{Time: "09:00", Timezone: "America/Sao_Paulo"},
	}
}

// Load reads the TOML file at path, filling unset fields with defaults.
// A missing file is not an error; the defaults apply.
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

// ReminderSchedule parses the reminder time and timezone.
func (c Config) ReminderSchedule() (hour, minute int, loc *time.Location, err error) {
	t, err := time.Parse("15:04", c.Reminder.Time)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("parse reminder time %q: %w", c.Reminder.Time, err)
	}
	loc, err = time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("load timezone %q: %w", c.Reminder.Timezone, err)
	}
	return t.Hour(), t.Minute(), loc, nil
}
