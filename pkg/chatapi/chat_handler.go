// Package chatapi serves the backend chat endpoint and the placeholder REST route.
package chatapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/chatbot/pkg/inference"
	"github.com/go-go-golems/chatbot/pkg/transport"
	"github.com/go-go-golems/chatbot/pkg/uistream"
)

const maxRequestBody = 4 << 20

// NewChatHandler streams the engine's reply to a posted conversation as a UI
// message stream. Failures after the stream started are reported in-band.
func NewChatHandler(eng inference.Engine, logger zerolog.Logger) http.HandlerFunc {
	logger = logger.With().Str("component", "chat-api").Logger()
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if eng == nil {
			http.Error(w, "chat engine not initialized", http.StatusServiceUnavailable)
			return
		}

		var body transport.ChatRequest
		if err := json.NewDecoder(io.LimitReader(req.Body, maxRequestBody)).Decode(&body); err != nil {
			logger.Debug().Err(err).Msg("invalid chat request body")
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(body.Messages) == 0 {
			http.Error(w, "missing messages", http.StatusBadRequest)
			return
		}

		messageID := uuid.NewString()
		sw := uistream.NewWriter(w)
		if err := sw.Start(messageID); err != nil {
			logger.Warn().Err(err).Msg("failed to start stream")
			return
		}

		log := logger.With().Str("chat_id", body.ID).Str("message_id", messageID).Logger()
		log.Info().Int("messages", len(body.Messages)).Msg("chat request")

		err := eng.RunStream(req.Context(), body.Messages, sw.TextDelta)
		switch {
		case err == nil:
			if err := sw.Finish(); err != nil {
				log.Warn().Err(err).Msg("failed to finish stream")
			}
		case req.Context().Err() != nil:
			log.Info().Err(context.Cause(req.Context())).Msg("client went away")
		default:
			log.Error().Err(err).Msg("engine failed")
			if err := sw.Fail("the assistant could not complete the response"); err != nil {
				log.Warn().Err(err).Msg("failed to report stream error")
			}
		}
	}
}
