package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/chatbot/pkg/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as YAML, secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteYAML(cmd.OutOrStdout(), a.settings.Redacted())
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from an interactive form",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configFile
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}

			s := a.settings
			form := config.NewForm(&s)
			if err := form.RunWithContext(cmd.Context()); err != nil {
				return err
			}
			if err := form.Apply(); err != nil {
				return err
			}
			if err := config.Save(path, s); err != nil {
				return err
			}
			a.logger.Debug().Str("config_path", path).Msg("config written")
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}

	cmd.AddCommand(showCmd, initCmd)
	return cmd
}
