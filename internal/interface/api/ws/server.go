package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamBot/internal/app/events"
	"streamBot/internal/domain"
)

// Server exposes the runtime over HTTP: a websocket feed of bus events, a
// console input path that dispatches privileged admin-origin messages, a
// health endpoint and Prometheus metrics.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	bus      *events.Bus

	mu       sync.RWMutex
	clients  map[*wsClient]struct{}
	dispatch MessageHandler

	httpSrv *http.Server
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Config struct {
	Addr string
	Bus  *events.Bus
}

func NewServer(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bus:     cfg.Bus,
		clients: make(map[*wsClient]struct{}),
	}
}

// SetHandler wires the dispatch func console messages go through.
func (s *Server) SetHandler(h MessageHandler) {
	s.mu.Lock()
	s.dispatch = h
	s.mu.Unlock()
}

// envelope is one event on the websocket feed.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// consoleInput is what a connected console sends to talk as the operator.
type consoleInput struct {
	Platform string `json:"platform"`
	Text     string `json:"text"`
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	unsubs := []func(){
		s.bus.Subscribe(events.TopicChatMessage, func(payload any) {
			if msg, ok := payload.(domain.Message); ok {
				s.broadcast(envelope{Type: "chat_message", Payload: events.NewChatMessageDTO(msg)})
			}
		}),
		s.bus.Subscribe(events.TopicChatResponse, func(payload any) {
			if resp, ok := payload.(domain.Response); ok {
				s.broadcast(envelope{Type: "chat_response", Payload: events.NewResponseDTO(resp)})
			}
		}),
		s.bus.Subscribe(events.TopicConnectionState, func(payload any) {
			if dto, ok := payload.(events.ConnectionStateDTO); ok {
				s.broadcast(envelope{Type: "connection_state", Payload: dto})
			}
		}),
		s.bus.Subscribe(events.TopicAppError, func(payload any) {
			if dto, ok := payload.(events.AppErrorDTO); ok {
				s.broadcast(envelope{Type: "app_error", Payload: dto})
			}
		}),
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	s.httpSrv = &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ws: listening", slog.String("addr", s.addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		s.closeClients()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", slog.Any("err", err))
		return
	}
	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var input consoleInput
		if err := conn.ReadJSON(&input); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws: read ended", slog.Any("err", err))
			}
			return
		}
		s.handleConsole(r.Context(), input)
	}
}

// handleConsole turns console input into an admin-origin message: no
// channel, privileged, dispatched like any other inbound message.
func (s *Server) handleConsole(ctx context.Context, input consoleInput) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return
	}
	platform := domain.Platform(strings.ToLower(strings.TrimSpace(input.Platform)))
	if platform == "" {
		platform = domain.PlatformTwitch
	}

	s.mu.RLock()
	dispatch := s.dispatch
	s.mu.RUnlock()
	if dispatch == nil {
		return
	}

	msg := domain.Message{
		ID:            uuid.NewString(),
		Platform:      platform,
		ChannelID:     "",
		UserID:        "console",
		Username:      "console",
		Text:          text,
		Timestamp:     time.Now(),
		IsAdminOrigin: true,
	}
	if err := dispatch(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("ws: console dispatch failed", slog.Any("err", err))
	}
}

func (s *Server) broadcast(ev envelope) {
	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(ev); err != nil {
			slog.Debug("ws: write failed; dropping client", slog.Any("err", err))
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			c.conn.Close()
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
		delete(s.clients, c)
	}
}
