// Package config loads chatbot settings from flags, CHATBOT_* environment
// variables and an optional config.yaml, in that order of precedence.
package config

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/logging"
	"github.com/go-go-golems/chatbot/pkg/redisstream"
)

const (
	AppName   = "chatbot"
	EnvPrefix = "CHATBOT"
)

type Settings struct {
	Logging logging.Settings `mapstructure:",squash" yaml:",inline"`

	Addr        string        `mapstructure:"addr" yaml:"addr"`
	Title       string        `mapstructure:"title" yaml:"title"`
	Markdown    bool          `mapstructure:"markdown" yaml:"markdown"`
	IdleTimeout time.Duration `mapstructure:"idle-timeout" yaml:"idle-timeout"`
	// ChatEndpoint is the backend web sessions stream from. Empty means the
	// server's own /api/chat.
	ChatEndpoint string `mapstructure:"chat-endpoint" yaml:"chat-endpoint,omitempty"`
	// Endpoint is the backend the terminal client streams from. Empty runs the
	// engine in process.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	Inference inference.Settings   `mapstructure:",squash" yaml:",inline"`
	Redis     redisstream.Settings `mapstructure:",squash" yaml:",inline"`
}

func Defaults() Settings {
	return Settings{
		Logging:     logging.DefaultSettings(),
		Addr:        ":8080",
		Title:       "AI Chatbot",
		Markdown:    true,
		IdleTimeout: 10 * time.Minute,
		Inference: inference.Settings{
			Engine: inference.EngineOpenAI,
			Model:  inference.DefaultModel,
		},
		Redis: redisstream.DefaultSettings(),
	}
}

// keys lists every setting with its default, keyed by flag name.
func keys(s Settings) map[string]interface{} {
	return map[string]interface{}{
		"log-level":       s.Logging.Level,
		"log-format":      s.Logging.Format,
		"log-file":        s.Logging.File,
		"log-caller":      s.Logging.Caller,
		"addr":            s.Addr,
		"title":           s.Title,
		"markdown":        s.Markdown,
		"idle-timeout":    s.IdleTimeout,
		"chat-endpoint":   s.ChatEndpoint,
		"endpoint":        s.Endpoint,
		"engine":          s.Inference.Engine,
		"openai-api-key":  s.Inference.APIKey,
		"openai-base-url": s.Inference.BaseURL,
		"openai-model":    s.Inference.Model,
		"system-prompt":   s.Inference.SystemPrompt,
		"echo-delay":      s.Inference.EchoDelay,
		"redis-enabled":   s.Redis.Enabled,
		"redis-addr":      s.Redis.Addr,
		"redis-group":     s.Redis.Group,
	}
}

// InitViper registers defaults and environment lookup on v and reads configFile,
// or config.yaml from $HOME/.chatbot or the working directory. A missing default
// config file is not an error.
func InitViper(v *viper.Viper, configFile string) error {
	for k, d := range keys(Defaults()) {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "decode settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(s.Logging.Level)); err != nil {
		return errors.Errorf("invalid log-level %q", s.Logging.Level)
	}
	switch strings.ToLower(s.Logging.Format) {
	case "text", "json":
	default:
		return errors.Errorf("invalid log-format %q (want text or json)", s.Logging.Format)
	}
	if s.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if s.IdleTimeout < 0 {
		return errors.New("idle-timeout must not be negative")
	}
	switch s.Inference.Engine {
	case inference.EngineOpenAI, inference.EngineEcho:
	default:
		return errors.Errorf("invalid engine %q (want %s or %s)", s.Inference.Engine, inference.EngineOpenAI, inference.EngineEcho)
	}
	if s.Inference.EchoDelay < 0 {
		return errors.New("echo-delay must not be negative")
	}
	for name, u := range map[string]string{
		"chat-endpoint":   s.ChatEndpoint,
		"endpoint":        s.Endpoint,
		"openai-base-url": s.Inference.BaseURL,
	} {
		if err := checkURL(u); err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return errors.New("redis-enabled requires redis-addr")
	}
	return nil
}

func checkURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

// Redacted hides secrets so the settings can be printed.
func (s Settings) Redacted() Settings {
	if s.Inference.APIKey != "" {
		s.Inference.APIKey = "****"
	}
	return s
}

func WriteYAML(w io.Writer, s Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "encode settings")
	}
	return errors.Wrap(enc.Close(), "encode settings")
}

// DefaultPath is $HOME/.chatbot/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}
	return filepath.Join(home, "."+AppName, "config.yaml"), nil
}

// Save writes s to path, readable by the owner only since it may hold an API key.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	if err := WriteYAML(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close config file")
}
