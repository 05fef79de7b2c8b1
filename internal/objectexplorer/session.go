package objectexplorer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/connection"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
)

// State is the lifecycle state of a session.
type State int

// Session states.
const (
	StateCreating State = iota
	StateReady
	StateFailed
	StateClosed
)

var stateNames = [...]string{"Creating", "Ready", "Failed", "Closed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ExpandState is the state of one node path of a session.
type ExpandState int

// Expansion states.
const (
	NotExpanded ExpandState = iota
	Expanding
	Expanded
	ExpandFailed
)

var expandStateNames = [...]string{"NotExpanded", "Expanding", "Expanded", "ExpandFailed"}

func (s ExpandState) String() string {
	if s < 0 || int(s) >= len(expandStateNames) {
		return fmt.Sprintf("ExpandState(%d)", int(s))
	}
	return expandStateNames[s]
}

// MarshalText renders the state name.
func (s ExpandState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SessionID derives the deterministic id of the session for opts.
func SessionID(opts connection.Options) string {
	return fmt.Sprintf("objectexplorer://%s@%s:%s/", opts.User, opts.Host, opts.Database)
}

// Session is one exploration context: a connection and the object tree
// built over it. The tree belongs to the session alone.
type Session struct {
	id        string
	options   connection.Options
	createdAt time.Time
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	conn       *connection.Conn
	root       *smo.Server
	err        error
	expansions map[string]*expansion
	expandSeq  uint64
}

// expansion tracks the tasks of one path. The outcome shown once all tasks
// finish is that of the task started last.
type expansion struct {
	state   ExpandState
	running int
	started uint64
	outcome ExpandState
	err     error
	stale   bool
}

func newSession(parent context.Context, opts connection.Options, logger *slog.Logger) *Session {
	id := SessionID(opts)
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:         id,
		options:    opts,
		createdAt:  time.Now(),
		logger:     logger.With("session", id),
		ctx:        ctx,
		cancel:     cancel,
		expansions: make(map[string]*expansion),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Root returns the root of the tree; nil until the session is Ready.
func (s *Session) Root() *smo.Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// ExpandState returns the expansion state of a canonical node path.
func (s *Session) ExpandState(path string) ExpandState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.expansions[normalizePath(s.id, path)]; ok {
		return e.state
	}
	return NotExpanded
}

// Resolve maps a node path to its target in the populated tree.
func (s *Session) Resolve(path string) (Target, error) {
	root := s.Root()
	if root == nil {
		return Target{}, &NodePathNotFoundError{Path: path, Reason: "session is " + s.State().String()}
	}
	return Resolve(root, normalizePath(s.id, path))
}

// ready records a successful open. It fails when the session was closed
// while the connection was being opened.
func (s *Session) ready(conn *connection.Conn, root *smo.Server) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreating {
		return false
	}
	s.state, s.conn, s.root = StateReady, conn, root
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state, s.err = StateFailed, err
}

// close moves the session to Closed and returns the connection to release.
// Later notifications for the session are discarded.
func (s *Session) close() *connection.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	conn := s.conn
	s.state, s.conn = StateClosed, nil
	return conn
}

// beginExpand registers a task for path and returns its sequence number.
// A refresh forgets the recorded state of every path below path.
func (s *Session) beginExpand(path string, refresh bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if refresh {
		for p, e := range s.expansions {
			if p == path || !strings.HasPrefix(p, path) {
				continue
			}
			if e.running == 0 {
				delete(s.expansions, p)
			} else {
				e.stale = true
			}
		}
	}
	e, ok := s.expansions[path]
	if !ok {
		e = &expansion{}
		s.expansions[path] = e
	}
	s.expandSeq++
	e.started = s.expandSeq
	e.running++
	e.stale = false
	e.state = Expanding
	return e.started
}

// endExpand records the outcome of task seq. The path leaves Expanding when
// its last task completes.
func (s *Session) endExpand(path string, seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.expansions[path]
	e.running--
	if seq == e.started {
		e.err = err
		e.outcome = Expanded
		if err != nil {
			e.outcome = ExpandFailed
		}
	}
	if e.running > 0 {
		return
	}
	if e.stale {
		delete(s.expansions, path)
		return
	}
	e.state = e.outcome
}

// deliver runs send unless the session was closed. It holds the session
// lock, so a close either precedes the check or follows the send.
func (s *Session) deliver(send func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	send()
	return true
}

// SessionSnapshot is a point-in-time view of a session.
type SessionSnapshot struct {
	SessionID  string                 `json:"sessionId"`
	State      State                  `json:"state"`
	CreatedAt  time.Time              `json:"createdAt"`
	Error      string                 `json:"error,omitempty"`
	Expansions map[string]ExpandState `json:"expansions"`
}

func (s *Session) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		SessionID:  s.id,
		State:      s.state,
		CreatedAt:  s.createdAt,
		Expansions: make(map[string]ExpandState, len(s.expansions)),
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	for path, e := range s.expansions {
		snap.Expansions[path] = e.state
	}
	return snap
}
