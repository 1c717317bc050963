package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TwitchUsername string   `env:"TWITCH_BOT_USERNAME"`
	TwitchToken    string   `env:"TWITCH_BOT_ACCESS_TOKEN"`
	TwitchChannels []string `env:"TWITCH_BOT_CHANNELS" envSeparator:","`
	TwitchClientID string   `env:"TWITCH_CLIENT_ID"`

	KickAccessToken       string `env:"KICK_ACCESS_TOKEN"`
	KickBroadcasterUserID int    `env:"KICK_BROADCASTER_USER_ID"`
	KickChatroomID        int    `env:"KICK_CHATROOM_ID"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/streambot.db"`
	APIAddr      string `env:"CHAT_WS_ADDR" envDefault:":8080"`
	CommandsFile string `env:"COMMANDS_FILE" envDefault:"commands.yaml"`
	EnvFile      string `env:"ENV_FILE" envDefault:".env"`
}

// Load reads .env (if present) into the environment and parses the Config
// struct from it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if cfg.TwitchUsername == "" || cfg.TwitchToken == "" {
		slog.Warn("config: twitch bot credentials not set; twitch connection stays disabled")
	}
	return cfg, nil
}

// Reload re-reads the env file, overriding values already in the process
// environment. The watcher calls this after the file changes.
func Reload(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Overload(envFile)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// ChangedKeys lists the env keys whose values differ between two snapshots.
func ChangedKeys(old, new *Config) []string {
	var keys []string
	add := func(key string, changed bool) {
		if changed {
			keys = append(keys, key)
		}
	}
	add("TWITCH_BOT_USERNAME", old.TwitchUsername != new.TwitchUsername)
	add("TWITCH_BOT_ACCESS_TOKEN", old.TwitchToken != new.TwitchToken)
	add("TWITCH_BOT_CHANNELS", !equalStrings(old.TwitchChannels, new.TwitchChannels))
	add("TWITCH_CLIENT_ID", old.TwitchClientID != new.TwitchClientID)
	add("KICK_ACCESS_TOKEN", old.KickAccessToken != new.KickAccessToken)
	add("KICK_BROADCASTER_USER_ID", old.KickBroadcasterUserID != new.KickBroadcasterUserID)
	add("KICK_CHATROOM_ID", old.KickChatroomID != new.KickChatroomID)
	add("DATABASE_PATH", old.DatabasePath != new.DatabasePath)
	add("CHAT_WS_ADDR", old.APIAddr != new.APIAddr)
	add("COMMANDS_FILE", old.CommandsFile != new.CommandsFile)
	return keys
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
