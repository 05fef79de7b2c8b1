package connection

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
)

// Methods and notifications served by Service.
const (
	MethodConnect             = "connection/connect"
	MethodDisconnect          = "connection/disconnect"
	NotifyComplete            = "connection/complete"
	NotifyLanguageFlavor      = "connection/languageflavorchanged"
	languageSQL, flavorPGSQL = "sql", "PGSQL"
)

// ConnectParams are the parameters of connection/connect.
type ConnectParams struct {
	OwnerURI   string `json:"ownerUri"`
	Connection struct {
		Options Options `json:"options"`
	} `json:"connection"`
}

// DisconnectParams are the parameters of connection/disconnect.
type DisconnectParams struct {
	OwnerURI string `json:"ownerUri"`
}

// Summary identifies an open connection to the client.
type Summary struct {
	ServerName   string `json:"serverName"`
	DatabaseName string `json:"databaseName"`
	UserName     string `json:"userName"`
}

// CompleteParams is the payload of connection/complete.
type CompleteParams struct {
	OwnerURI          string      `json:"ownerUri"`
	ConnectionID      string      `json:"connectionId,omitempty"`
	ConnectionSummary *Summary    `json:"connectionSummary,omitempty"`
	ServerInfo        *ServerInfo `json:"serverInfo,omitempty"`
	ErrorMessage      *string     `json:"errorMessage"`
	Messages          *string     `json:"messages"`
}

// LanguageFlavorParams is the payload of connection/languageflavorchanged.
type LanguageFlavorParams struct {
	URI      string `json:"uri"`
	Language string `json:"language"`
	Flavor   string `json:"flavor"`
}

// Service tracks connections opened on behalf of editor documents, keyed by
// owner URI.
type Service struct {
	opener   Opener
	notifier jsonrpc.Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]*owned
}

type owned struct {
	id   string
	conn *Conn
}

// NewService creates the connection service.
func NewService(opener Opener, notifier jsonrpc.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		opener:   opener,
		notifier: notifier,
		logger:   logger,
		conns:    make(map[string]*owned),
	}
}

// Register installs the service's handlers.
func (s *Service) Register(srv *jsonrpc.Server) {
	srv.Handle(MethodConnect, s.handleConnect)
	srv.Handle(MethodDisconnect, s.handleDisconnect)
}

// Conn returns the connection owned by ownerURI.
func (s *Service) Conn(ownerURI string) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.conns[ownerURI]
	if !ok {
		return nil, false
	}
	return o.conn, true
}

// Close closes every tracked connection.
func (s *Service) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]*owned)
	s.mu.Unlock()
	for uri, o := range conns {
		if err := o.conn.Close(); err != nil {
			s.logger.Warn("closing connection", "owner", uri, "error", err)
		}
	}
}

func (s *Service) handleConnect(ctx context.Context, raw json.RawMessage) (any, error) {
	var params ConnectParams
	if err := jsonrpc.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.OwnerURI == "" {
		return nil, jsonrpc.InvalidParams("ownerUri is required")
	}

	opts := params.Connection.Options.WithDefaults()
	conn, err := s.opener.Open(ctx, opts)
	if err != nil {
		s.logger.Info("connect failed", "owner", params.OwnerURI, "target", opts.String(), "error", err)
		msg := err.Error()
		jsonrpc.AfterResponse(ctx, func() {
			s.notify(NotifyComplete, CompleteParams{OwnerURI: params.OwnerURI, ErrorMessage: &msg, Messages: &msg})
		})
		return nil, nil
	}

	id := uuid.NewString()
	s.mu.Lock()
	old := s.conns[params.OwnerURI]
	s.conns[params.OwnerURI] = &owned{id: id, conn: conn}
	s.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}

	info := conn.Info()
	summary := &Summary{ServerName: info.Host, DatabaseName: info.Database, UserName: info.User}
	s.logger.Info("connected", "owner", params.OwnerURI, "connection", id, "version", info.VersionNum)

	jsonrpc.AfterResponse(ctx, func() {
		s.notify(NotifyComplete, CompleteParams{
			OwnerURI:          params.OwnerURI,
			ConnectionID:      id,
			ConnectionSummary: summary,
			ServerInfo:        &info,
		})
		s.notify(NotifyLanguageFlavor, LanguageFlavorParams{
			URI:      params.OwnerURI,
			Language: languageSQL,
			Flavor:   flavorPGSQL,
		})
	})
	return summary, nil
}

func (s *Service) handleDisconnect(_ context.Context, raw json.RawMessage) (any, error) {
	var params DisconnectParams
	if err := jsonrpc.DecodeParams(raw, &params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	o, ok := s.conns[params.OwnerURI]
	delete(s.conns, params.OwnerURI)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := o.conn.Close(); err != nil {
		s.logger.Warn("closing connection", "owner", params.OwnerURI, "error", err)
	}
	return true, nil
}

func (s *Service) notify(method string, params any) {
	if err := s.notifier.Notify(method, params); err != nil {
		s.logger.Warn("dropping notification", "method", method, "error", err)
	}
}
