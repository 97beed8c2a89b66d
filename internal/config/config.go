package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models cardroom.yml.
type Config struct {
	Feed struct {
		BaseURL      string   `yaml:"base_url"`
		Destinations []string `yaml:"destinations"`
	} `yaml:"feed"`
	Poller struct {
		MicroSeconds        int `yaml:"micro_seconds"`
		ShortSeconds        int `yaml:"short_seconds"`
		LongSeconds         int `yaml:"long_seconds"`
		InactivityThreshold int `yaml:"inactivity_threshold"`
		Limit               int `yaml:"limit"`
	} `yaml:"poller"`
	Retry struct {
		Limit int `yaml:"limit"`
	} `yaml:"retry"`
	Bank struct {
		Grant          int `yaml:"grant"`
		LeadersDefault int `yaml:"leaders_default"`
		LeadersMax     int `yaml:"leaders_max"`
	} `yaml:"bank"`
	Agents map[string]Agent `yaml:"agents"`
	Server struct {
		Addr      string `yaml:"addr"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	IgnoreUsers []string `yaml:"ignore_users"`
	BansFile    string   `yaml:"bans_file"`
}

// Agent is one bot account definition.
type Agent struct {
	Enabled  bool   `yaml:"enabled"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// AgentNames recognized in the agents map.
var AgentNames = []string{"blackjack", "videopoker", "banker"}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with cardroom config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("config.feed.base_url is required")
	}
	if len(c.Feed.Destinations) == 0 {
		return fmt.Errorf("config.feed.destinations must name at least one destination")
	}
	p := c.Poller
	if p.MicroSeconds <= 0 || p.ShortSeconds <= 0 || p.LongSeconds <= 0 {
		return fmt.Errorf("config.poller tiers must all be positive")
	}
	if !(p.MicroSeconds < p.ShortSeconds && p.ShortSeconds < p.LongSeconds) {
		return fmt.Errorf("config.poller tiers must satisfy micro < short < long")
	}
	if p.InactivityThreshold <= 0 {
		return fmt.Errorf("config.poller.inactivity_threshold must be positive")
	}
	if c.Retry.Limit <= 0 {
		return fmt.Errorf("config.retry.limit must be positive")
	}
	if c.Bank.Grant <= 0 {
		return fmt.Errorf("config.bank.grant must be positive")
	}
	if c.Bank.LeadersDefault <= 0 || c.Bank.LeadersMax < c.Bank.LeadersDefault {
		return fmt.Errorf("config.bank leaders bounds must satisfy 0 < default <= max")
	}
	enabled := 0
	for name, agent := range c.Agents {
		if !knownAgent(name) {
			return fmt.Errorf("config.agents has unknown agent %q", name)
		}
		if !agent.Enabled {
			continue
		}
		enabled++
		if agent.User == "" {
			return fmt.Errorf("config.agents.%s.user is required when enabled", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config.agents must enable at least one agent")
	}
	return nil
}

func knownAgent(name string) bool {
	for _, n := range AgentNames {
		if n == name {
			return true
		}
	}
	return false
}

// Tier durations converted from the config's integer seconds.
func (c *Config) Micro() time.Duration { return time.Duration(c.Poller.MicroSeconds) * time.Second }
func (c *Config) Short() time.Duration { return time.Duration(c.Poller.ShortSeconds) * time.Second }
func (c *Config) Long() time.Duration  { return time.Duration(c.Poller.LongSeconds) * time.Second }

// Bans returns the ban list path, defaulting into the workspace
// scratch dir.
func (c *Config) Bans(workspace string) string {
	if c.BansFile != "" {
		return c.BansFile
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".cardroom", "bans.txt")
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "cardroom.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `feed:
  base_url: http://localhost:8597
  destinations: [casino]

poller:
  micro_seconds: 10
  short_seconds: 30
  long_seconds: 180
  inactivity_threshold: 8
  limit: 10

retry:
  limit: 5

bank:
  grant: 100
  leaders_default: 10
  leaders_max: 100

agents:
  blackjack:
    enabled: true
    user: dealerbot
    password: ""
  videopoker:
    enabled: true
    user: pokerbot
    password: ""
  banker:
    enabled: true
    user: bankerbot
    password: ""

server:
  addr: ":8597"
  jwt_secret: ""

ignore_users: []
`
