package cmds

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-go-golems/chatbot/pkg/config"
	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/logging"
)

// app carries what PersistentPreRunE loaded to the subcommands.
type app struct {
	viper      *viper.Viper
	configFile string
	settings   config.Settings
	logger     zerolog.Logger
}

func NewRootCommand() *cobra.Command {
	a := &app{viper: viper.New()}
	d := config.Defaults()

	rootCmd := &cobra.Command{
		Use:           config.AppName,
		Short:         "A minimal streaming chat application",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default $HOME/.chatbot/config.yaml)")
	pf.String("log-level", d.Logging.Level, "log level (trace, debug, info, warn, error)")
	pf.String("log-format", d.Logging.Format, "log format (text or json)")
	pf.String("log-file", d.Logging.File, "write logs to this file, rotated")
	pf.Bool("log-caller", d.Logging.Caller, "add the source location to log entries")

	rootCmd.AddCommand(newServeCommand(a), newChatCommand(a), newConfigCommand(a))
	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	if err := config.InitViper(a.viper, a.configFile); err != nil {
		return err
	}
	if err := a.viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	s, err := config.Load(a.viper)
	if err != nil {
		return err
	}
	logger, err := logging.Init(s.Logging)
	if err != nil {
		return err
	}
	a.settings = s
	a.logger = logger
	if f := a.viper.ConfigFileUsed(); f != "" {
		logger.Debug().Str("config_path", f).Msg("using config file")
	}
	return nil
}

func addInferenceFlags(fs *pflag.FlagSet, d inference.Settings) {
	fs.String("engine", d.Engine, "inference engine (openai or echo)")
	fs.String("openai-api-key", "", "OpenAI API key")
	fs.String("openai-base-url", d.BaseURL, "base URL of an OpenAI compatible API")
	fs.String("openai-model", d.Model, "model name")
	fs.String("system-prompt", d.SystemPrompt, "system prompt sent before the conversation")
	fs.Duration("echo-delay", d.EchoDelay, "delay between echo engine fragments")
}
