// Package objectexplorer serves the objectexplorer/* methods: it keeps one
// session per connection target and expands its object tree in the
// background, announcing results with notifications.
package objectexplorer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/connection"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/templating"
)

// Methods and notifications served by Service.
const (
	MethodCreateSession   = "objectexplorer/createsession"
	MethodExpand          = "objectexplorer/expand"
	MethodRefresh         = "objectexplorer/refresh"
	MethodCloseSession    = "objectexplorer/closesession"
	NotifySessionCreated  = "objectexplorer/sessioncreated"
	NotifyExpandCompleted = "objectexplorer/expandCompleted"
)

const livenessTimeout = 5 * time.Second

// ErrServiceClosed is returned for requests arriving after Close.
var ErrServiceClosed = errors.New("object explorer is shut down")

// CreateSessionParams are the parameters of objectexplorer/createsession.
type CreateSessionParams struct {
	Options connection.Options `json:"options"`
}

// CreateSessionResponse is the result of objectexplorer/createsession.
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// SessionCreatedParams is the payload of objectexplorer/sessioncreated.
type SessionCreatedParams struct {
	SessionID    string    `json:"sessionId"`
	RootNode     *NodeInfo `json:"rootNode"`
	Success      bool      `json:"success"`
	ErrorMessage *string   `json:"errorMessage"`
	Messages     *string   `json:"messages"`
}

// ExpandParams are the parameters of objectexplorer/expand and refresh.
type ExpandParams struct {
	SessionID string `json:"sessionId"`
	NodePath  string `json:"nodePath"`
}

// ExpandCompletedParams is the payload of objectexplorer/expandCompleted.
type ExpandCompletedParams struct {
	SessionID    string     `json:"sessionId"`
	NodePath     string     `json:"nodePath"`
	Nodes        []NodeInfo `json:"nodes"`
	ErrorMessage *string    `json:"errorMessage"`
}

// CloseSessionParams are the parameters of objectexplorer/closesession.
type CloseSessionParams struct {
	SessionID string `json:"sessionId"`
}

// Service is the session registry.
type Service struct {
	opener   connection.Opener
	resolver *templating.Resolver
	notifier jsonrpc.Notifier
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
}

// NewService creates the registry. Sessions open connections through opener
// and resolve catalog queries and scripts through resolver.
func NewService(opener connection.Opener, resolver *templating.Resolver, notifier jsonrpc.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		opener:   opener,
		resolver: resolver,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Register installs the service's handlers.
func (s *Service) Register(srv *jsonrpc.Server) {
	srv.Handle(MethodCreateSession, s.handleCreateSession)
	srv.Handle(MethodExpand, s.handleExpand)
	srv.Handle(MethodRefresh, s.handleRefresh)
	srv.Handle(MethodCloseSession, s.handleCloseSession)
}

// Session returns a registered session.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &UnknownSessionError{SessionID: id}
	}
	return sess, nil
}

// Sessions returns snapshots of all registered sessions ordered by id.
func (s *Service) Sessions() []SessionSnapshot {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	out := make([]SessionSnapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.snapshot())
	}
	slices.SortFunc(out, func(a, b SessionSnapshot) int { return strings.Compare(a.SessionID, b.SessionID) })
	return out
}

// ResolveObject returns the object at path in a ready session. Folder paths
// do not denote objects.
func (s *Service) ResolveObject(sessionID, path string) (smo.Object, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	target, err := sess.Resolve(path)
	if err != nil {
		return nil, err
	}
	if target.IsFolder() {
		return nil, &NodePathNotFoundError{Path: path, Reason: "path denotes a folder, not an object"}
	}
	return target.Object, nil
}

// Close closes every session and waits for background work to finish.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.release(sess)
	}
	s.cancel()
	s.tasks.Wait()
}

func (s *Service) handleCreateSession(ctx context.Context, raw json.RawMessage) (any, error) {
	var params CreateSessionParams
	if err := jsonrpc.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	opts := params.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sess := newSession(s.ctx, opts, s.logger)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	old := s.sessions[sess.id]
	s.sessions[sess.id] = sess
	s.tasks.Add(1)
	s.mu.Unlock()

	if old != nil {
		sess.logger.Info("replacing existing session")
		s.release(old)
	}

	jsonrpc.AfterResponse(ctx, func() { go s.open(sess) })
	return CreateSessionResponse{SessionID: sess.id}, nil
}

// open connects a Creating session and announces the outcome.
func (s *Service) open(sess *Session) {
	defer s.tasks.Done()

	conn, err := s.opener.Open(sess.ctx, sess.options)
	if err != nil {
		sess.logger.Info("session open failed", "target", sess.options.String(), "error", err)
		sess.fail(err)
		msg := errorMessage(err)
		sess.deliver(func() {
			s.notify(NotifySessionCreated, SessionCreatedParams{SessionID: sess.id, ErrorMessage: msg, Messages: msg})
		})
		return
	}

	info := conn.Info()
	root := smo.NewServer(conn, smo.ServerInfo{
		Host:       info.Host,
		Port:       info.Port,
		Database:   info.Database,
		User:       info.User,
		VersionNum: info.VersionNum,
		Version:    info.Version,
	}, s.resolver, sess.logger)

	if !sess.ready(conn, root) {
		_ = conn.Close()
		return
	}
	sess.logger.Info("session ready", "version", info.VersionNum)

	node := rootNodeInfo(root)
	sess.deliver(func() {
		s.notify(NotifySessionCreated, SessionCreatedParams{SessionID: sess.id, RootNode: &node, Success: true})
	})
}

func (s *Service) handleExpand(ctx context.Context, raw json.RawMessage) (any, error) {
	return s.startExpand(ctx, raw, false)
}

func (s *Service) handleRefresh(ctx context.Context, raw json.RawMessage) (any, error) {
	return s.startExpand(ctx, raw, true)
}

// startExpand validates an expand or refresh request and schedules its
// population. A session that is not Ready declines with false.
func (s *Service) startExpand(ctx context.Context, raw json.RawMessage, refresh bool) (any, error) {
	var params ExpandParams
	if err := jsonrpc.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	sess, err := s.Session(params.SessionID)
	if err != nil {
		return nil, err
	}
	if state := sess.State(); state != StateReady {
		sess.logger.Debug("declining expand", "path", params.NodePath, "state", state)
		return false, nil
	}
	target, err := sess.Resolve(params.NodePath)
	if err != nil {
		return nil, err
	}

	path := target.Path()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.tasks.Add(1)
	s.mu.Unlock()
	seq := sess.beginExpand(path, refresh)

	jsonrpc.AfterResponse(ctx, func() {
		go s.expand(sess, params.NodePath, target, refresh, seq)
	})
	return true, nil
}

// expand populates target and announces the result under the requested
// path.
func (s *Service) expand(sess *Session, requested string, target Target, refresh bool, seq uint64) {
	defer s.tasks.Done()
	path := target.Path()
	logger := sess.logger.With("path", path, "refresh", refresh)

	nodes, err := populate(sess.ctx, target, refresh)
	sess.endExpand(path, seq, err)

	params := ExpandCompletedParams{SessionID: sess.id, NodePath: requested, Nodes: nodes}
	if err != nil {
		if sess.ctx.Err() != nil {
			logger.Debug("discarding expansion of closed session")
			return
		}
		logger.Warn("expand failed", "error", err)
		params.Nodes = []NodeInfo{}
		params.ErrorMessage = errorMessage(err)
		s.checkLiveness(sess)
	} else {
		logger.Debug("expand completed", "nodes", len(nodes))
	}

	if !sess.deliver(func() { s.notify(NotifyExpandCompleted, params) }) {
		logger.Debug("discarding expansion of closed session")
	}
}

func populate(ctx context.Context, target Target, refresh bool) ([]NodeInfo, error) {
	if !target.IsFolder() {
		obj := target.Object
		if refresh {
			obj.InvalidateProperties()
			for _, c := range obj.Collections() {
				c.Invalidate()
			}
		}
		nodes := make([]NodeInfo, 0, len(obj.Collections()))
		for _, c := range obj.Collections() {
			nodes = append(nodes, folderNodeInfo(c))
		}
		return nodes, nil
	}

	items, err := target.Collection.Get(ctx, refresh)
	if err != nil {
		return nil, err
	}
	nodes := make([]NodeInfo, 0, len(items))
	for _, obj := range items {
		nodes = append(nodes, objectNodeInfo(obj))
	}
	return nodes, nil
}

// checkLiveness pings the session's connection after a failed population
// and fails the session when the connection is gone.
func (s *Service) checkLiveness(sess *Session) {
	sess.mu.Lock()
	conn := sess.conn
	sess.mu.Unlock()
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(sess.ctx, livenessTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		sess.logger.Warn("connection lost", "error", err)
		sess.fail(err)
	}
}

func (s *Service) handleCloseSession(_ context.Context, raw json.RawMessage) (any, error) {
	var params CloseSessionParams
	if err := jsonrpc.DecodeParams(raw, &params); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[params.SessionID]
	delete(s.sessions, params.SessionID)
	s.mu.Unlock()
	if !ok {
		return nil, &UnknownSessionError{SessionID: params.SessionID}
	}

	s.release(sess)
	sess.logger.Info("session closed")
	return true, nil
}

// release closes sess and its connection.
func (s *Service) release(sess *Session) {
	if conn := sess.close(); conn != nil {
		if err := conn.Close(); err != nil {
			sess.logger.Warn("closing connection", "error", err)
		}
	}
}

func (s *Service) notify(method string, params any) {
	if err := s.notifier.Notify(method, params); err != nil {
		s.logger.Warn("dropping notification", "method", method, "error", err)
	}
}
