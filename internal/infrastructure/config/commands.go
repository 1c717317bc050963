package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CommandSettings is the optional commands.yaml: the command prefix, the
// platforms excluded from command processing, and per-command cooldown
// overrides.
type CommandSettings struct {
	Prefix            string                      `yaml:"prefix"`
	DisabledPlatforms []string                    `yaml:"disabled_platforms"`
	Cooldowns         map[string]CooldownOverride `yaml:"cooldowns"`
}

type CooldownOverride struct {
	User   Duration `yaml:"user"`
	Global Duration `yaml:"global"`
}

// Duration parses Go duration strings ("5s", "1500ms") out of YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadCommandSettings reads the YAML file. A missing file is not an error;
// defaults apply.
func LoadCommandSettings(path string) (*CommandSettings, error) {
	settings := &CommandSettings{Prefix: "!"}
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if settings.Prefix == "" {
		settings.Prefix = "!"
	}
	return settings, nil
}
