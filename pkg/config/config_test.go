package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/chatbot/pkg/inference"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9000\"\nengine: echo\nidle-timeout: 5s\nopenai-model: from-file\n"), 0o600))
	t.Setenv("CHATBOT_OPENAI_MODEL", "from-env")
	t.Setenv("CHATBOT_REDIS_ADDR", "redis:6379")

	v := viper.New()
	require.NoError(t, InitViper(v, path))
	s, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, ":9000", s.Addr)
	require.Equal(t, inference.EngineEcho, s.Inference.Engine)
	require.Equal(t, 5*time.Second, s.IdleTimeout)
	require.Equal(t, "from-env", s.Inference.Model)
	require.Equal(t, "redis:6379", s.Redis.Addr)
	require.Equal(t, "AI Chatbot", s.Title)
	require.Equal(t, "info", s.Logging.Level)
}

func TestMissingExplicitConfigFails(t *testing.T) {
	v := viper.New()
	require.Error(t, InitViper(v, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Settings){
		"level":    func(s *Settings) { s.Logging.Level = "loud" },
		"format":   func(s *Settings) { s.Logging.Format = "xml" },
		"addr":     func(s *Settings) { s.Addr = "" },
		"engine":   func(s *Settings) { s.Inference.Engine = "magic" },
		"idle":     func(s *Settings) { s.IdleTimeout = -time.Second },
		"endpoint": func(s *Settings) { s.Endpoint = "ftp://example.com/chat" },
		"redis":    func(s *Settings) { s.Redis.Enabled, s.Redis.Addr = true, "" },
	} {
		s := Defaults()
		mutate(&s)
		require.Error(t, s.Validate(), name)
	}
}

func TestRedactedYAMLAndSave(t *testing.T) {
	s := Defaults()
	s.Inference.APIKey = "sk-secret"

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, s.Redacted()))
	require.Contains(t, buf.String(), "****")
	require.NotContains(t, buf.String(), "sk-secret")
	require.Contains(t, buf.String(), "idle-timeout: 10m0s")

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, Save(path, s))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	v := viper.New()
	require.NoError(t, InitViper(v, path))
	loaded, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "sk-secret", loaded.Inference.APIKey)
	require.Equal(t, s.IdleTimeout, loaded.IdleTimeout)
}

func TestFormApply(t *testing.T) {
	s := Defaults()
	f := NewForm(&s)
	f.idle = "90s"
	require.NoError(t, f.Apply())
	require.Equal(t, 90*time.Second, s.IdleTimeout)

	f.idle = "soon"
	require.Error(t, f.Apply())
}
