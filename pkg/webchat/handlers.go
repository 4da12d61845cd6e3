package webchat

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/go-go-golems/chatbot/pkg/chat"
	"github.com/go-go-golems/chatbot/pkg/ui/web"
)

const maxSubmitBody = 1 << 20

func newIndexHandler(m *Manager, r *web.Renderer, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := req.URL.Query().Get("session_id")
		if id == "" {
			s, err := m.Create()
			if err != nil {
				http.Error(w, "could not create session", http.StatusServiceUnavailable)
				return
			}
			http.Redirect(w, req, "/?session_id="+url.QueryEscape(s.ID), http.StatusSeeOther)
			return
		}
		s, ok := m.Get(id)
		if !ok {
			http.Redirect(w, req, "/", http.StatusSeeOther)
			return
		}

		var buf bytes.Buffer
		if err := r.RenderPage(&buf, web.PageData{SessionID: s.ID, Snapshot: s.Store().Snapshot()}); err != nil {
			logger.Error().Err(err).Str("session_id", s.ID).Msg("render page failed")
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(buf.Bytes())
	}
}

func newSubmitHandler(m *Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		req.Body = http.MaxBytesReader(w, req.Body, maxSubmitBody)
		if err := req.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		s, ok := m.Get(req.PostForm.Get("session_id"))
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}

		var c chat.Composer
		c.SetDraft(req.PostForm.Get("message"))
		err := c.Send(s.Store().Status(), s.Store())
		switch {
		case err == nil:
			w.WriteHeader(http.StatusAccepted)
		case stderrors.Is(err, chat.ErrEmptyInput):
			w.WriteHeader(http.StatusNoContent)
		case stderrors.Is(err, chat.ErrNotReady):
			http.Error(w, "a response is still in progress", http.StatusConflict)
		case stderrors.Is(err, chat.ErrClosed):
			http.Error(w, "unknown session", http.StatusNotFound)
		default:
			logger.Error().Err(err).Str("session_id", s.ID).Msg("submit failed")
			http.Error(w, "submit failed", http.StatusInternalServerError)
		}
	}
}

func newWSHandler(m *Manager, r *web.Renderer, logger zerolog.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: sameOrigin}
	return func(w http.ResponseWriter, req *http.Request) {
		s, ok := m.Get(req.URL.Query().Get("session_id"))
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		// Subscribe before the first frame so no update falls in between.
		ctx, cancel := context.WithCancel(req.Context())
		defer cancel()
		consumer := uuid.NewString()
		sub, err := m.cfg.Bus.Subscribe(ctx, s.Topic(), consumer)
		if err != nil {
			logger.Error().Err(err).Str("session_id", s.ID).Msg("subscribe failed")
			http.Error(w, "updates unavailable", http.StatusServiceUnavailable)
			return
		}
		defer func() { _ = sub.Close() }()

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Warn().Err(err).Str("session_id", s.ID).Msg("websocket upgrade failed")
			return
		}
		if !m.attach(s, conn) {
			logger.Debug().Str("session_id", s.ID).Msg("session removed before websocket attached")
			return
		}
		pool := s.Pool()
		defer pool.Remove(conn)
		logger.Debug().Str("session_id", s.ID).Str("consumer", consumer).Int("connections", pool.Count()).Msg("websocket attached")

		snap := s.Store().Snapshot()
		payload, err := encodeFrame(r, snap)
		if err != nil {
			logger.Error().Err(err).Str("session_id", s.ID).Msg("could not render frame")
			return
		}
		pool.Send(conn, snap.Version, payload)

		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				logger.Debug().Str("session_id", s.ID).Str("consumer", consumer).Msg("websocket detached")
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				version := gjson.GetBytes(msg.Payload, "version").Uint()
				pool.Send(conn, version, msg.Payload)
				msg.Ack()
			}
		}
	}
}

// sameOrigin accepts clients that send no Origin, such as CLI tools, and
// browsers whose Origin host matches the requested host.
func sameOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, req.Host)
}

func withRequestLog(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		logger.Trace().Str("method", req.Method).Str("path", req.URL.Path).Dur("took", time.Since(start)).Msg("http request")
	})
}
