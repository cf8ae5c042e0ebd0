package config

import (
	"flag"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string         `yaml:"env" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Session  SessionConfig  `yaml:"session"`
	WebRTC   WebRTCConfig   `yaml:"webrtc"`
	Database DatabaseConfig `yaml:"database"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env-default:""`
}

type SessionConfig struct {
	// ClaimCode is the shared secret a joiner presents to self-elect
	// as owner. Empty disables owner claims entirely.
	ClaimCode            string `yaml:"claim_code" env:"SESSION_CLAIM_CODE"`
	WhiteboardDefault    bool   `yaml:"whiteboard_default" env-default:"true"`
	MaxChatMessageLength int    `yaml:"max_chat_message_length" env-default:"4000"`
	MaxDisplayNameLength int    `yaml:"max_display_name_length" env-default:"255"`
}

type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers" env-default:""`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Session.MaxChatMessageLength <= 0 {
		c.Session.MaxChatMessageLength = 4000
	}
	if c.Session.MaxDisplayNameLength <= 0 {
		c.Session.MaxDisplayNameLength = 255
	}
}
