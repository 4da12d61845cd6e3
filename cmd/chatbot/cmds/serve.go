package cmds

import (
	"net"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/config"
	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/redisstream"
	"github.com/go-go-golems/chatbot/pkg/transport"
	"github.com/go-go-golems/chatbot/pkg/webchat"
)

func newServeCommand(a *app) *cobra.Command {
	d := config.Defaults()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat UI, /api/chat and /api",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := a.settings
			logger := a.logger

			eng, err := inference.New(s.Inference)
			if err != nil {
				if s.ChatEndpoint == "" {
					return errors.Wrap(err, "create inference engine")
				}
				logger.Warn().Err(err).Msg("no inference engine, /api/chat unavailable")
			}

			bus, err := redisstream.Build(s.Redis, logger)
			if err != nil {
				return err
			}

			endpoint := s.ChatEndpoint
			if endpoint == "" {
				endpoint, err = loopbackEndpoint(s.Addr)
				if err != nil {
					_ = bus.Close()
					return err
				}
			}
			logger.Info().Str("chat_endpoint", endpoint).Str("engine", s.Inference.Engine).Bool("redis", bus.Redis()).Msg("configured")

			srv, err := webchat.NewServer(cmd.Context(), webchat.Config{
				Addr:        s.Addr,
				Title:       s.Title,
				Markdown:    s.Markdown,
				IdleTimeout: s.IdleTimeout,
				Transports: func(sessionID string) chat.Transport {
					return transport.NewHTTP(endpoint,
						transport.WithChatID(sessionID),
						transport.WithLogger(logger),
					)
				},
				Engine: eng,
				Bus:    bus,
				Logger: logger,
			})
			if err != nil {
				_ = bus.Close()
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	fs := cmd.Flags()
	fs.String("addr", d.Addr, "listen address")
	fs.String("title", d.Title, "page title")
	fs.Bool("markdown", d.Markdown, "render assistant answers as Markdown")
	fs.Duration("idle-timeout", d.IdleTimeout, "evict a session this long after its last websocket closed")
	fs.String("chat-endpoint", "", "chat backend of the web sessions (default: this server's /api/chat)")
	fs.Bool("redis-enabled", d.Redis.Enabled, "fan session updates out over Redis Streams")
	fs.String("redis-addr", d.Redis.Addr, "Redis address")
	fs.String("redis-group", d.Redis.Group, "consumer group prefix")
	addInferenceFlags(fs, d.Inference)
	return cmd
}

// loopbackEndpoint is the /api/chat URL of a server listening on addr.
func loopbackEndpoint(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", errors.Wrapf(err, "invalid addr %q", addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/chat", nil
}
