package cmds

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/config"
	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/transport"
	"github.com/go-go-golems/chatbot/pkg/ui/lineui"
	"github.com/go-go-golems/chatbot/pkg/ui/tui"
)

func newChatCommand(a *app) *cobra.Command {
	d := config.Defaults()
	var plain bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat from the terminal",
		Long: "Chat from the terminal. With --endpoint the conversation streams from a running\n" +
			"chatbot server (or any compatible /api/chat); otherwise the engine runs in process.\n" +
			"When stdin is not a terminal every input line is sent as one message.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			interactive := !plain && term.IsTerminal(int(os.Stdin.Fd()))

			logger := a.logger
			if interactive && s.Logging.File == "" {
				// The full-screen UI owns the terminal.
				logger = zerolog.Nop()
				log.Logger = logger
			}

			var tr chat.Transport
			if s.Endpoint != "" {
				tr = transport.NewHTTP(s.Endpoint, transport.WithLogger(logger))
			} else {
				eng, err := inference.New(s.Inference)
				if err != nil {
					return errors.Wrap(err, "create inference engine")
				}
				tr = inference.Transport{Engine: eng}
			}

			store := chat.NewStore(cmd.Context(), tr, chat.WithLogger(logger))
			defer store.Close()

			if !interactive {
				return lineui.Run(cmd.Context(), store, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return tui.Run(cmd.Context(), store, tui.Options{Title: s.Title, Markdown: s.Markdown})
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&plain, "plain", false, "line mode even on a terminal")
	fs.String("endpoint", "", "URL of a remote /api/chat endpoint")
	fs.String("title", d.Title, "title shown above the conversation")
	fs.Bool("markdown", d.Markdown, "render assistant answers as Markdown")
	addInferenceFlags(fs, d.Inference)
	return cmd
}
