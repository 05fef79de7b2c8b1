package smo

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/templating"
)

// Querier runs a metadata query and materializes its rows. Implementations
// serialize concurrent calls when the underlying connection requires it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// ServerInfo describes the connection a Server was built from.
type ServerInfo struct {
	Host       string
	Port       int
	Database   string // the connected database
	User       string
	VersionNum int // server_version_num
	Version    string
}

// Server is the root of an object tree.
type Server struct {
	node
	querier  Querier
	info     ServerInfo
	resolver *templating.Resolver
	logger   *slog.Logger
}

// NewServer creates the root object for one connection.
func NewServer(q Querier, info ServerInfo, resolver *templating.Resolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		querier:  q,
		info:     info,
		resolver: resolver,
		logger:   logger,
	}
	s.node = node{typ: TypeServer, name: info.Host, label: info.Database}
	s.server = s

	spec, ok := lookupSpec(TypeServer)
	if !ok {
		panic("smo: server type not registered")
	}
	initCollections(s, spec)
	return s
}

// Info returns the connection description.
func (s *Server) Info() ServerInfo { return s.info }

// Querier returns the query primitive the tree runs on.
func (s *Server) Querier() Querier { return s.querier }

// FullProperties of the server come from the connection, without I/O.
func (s *Server) FullProperties(context.Context) (Row, error) {
	return Row{
		"host":        s.info.Host,
		"port":        s.info.Port,
		"database":    s.info.Database,
		"user":        s.info.User,
		"version_num": s.info.VersionNum,
		"version":     s.info.Version,
	}, nil
}

// Handle resolves the template bundle for t against this server's version.
func (s *Server) Handle(t NodeType) (*templating.Handle, error) {
	return s.resolver.Resolve(t.Category(), s.info.VersionNum)
}

// IsConnectedDatabase reports whether name is the database the connection
// is bound to. Catalogs of other databases are not reachable.
func (s *Server) IsConnectedDatabase(name string) bool {
	return name == s.info.Database
}

func (s *Server) listChildren(ctx context.Context, parent Object, t NodeType) ([]Row, error) {
	h, err := s.Handle(t)
	if err != nil {
		return nil, err
	}
	sql, err := h.Render(templating.OpNodes, scopeData(parent.base(), false))
	if err != nil {
		return nil, err
	}
	return s.querier.Query(ctx, sql)
}

func (s *Server) queryProperties(ctx context.Context, n *node) (Row, error) {
	h, err := s.Handle(n.typ)
	if err != nil {
		return nil, err
	}
	sql, err := h.Render(templating.OpProperties, scopeData(n, true))
	if err != nil {
		return nil, err
	}
	rows, err := s.querier.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("querying %s properties: %w", n.typ, err)
	}
	if len(rows) == 0 {
		return nil, &ObjectNotFoundError{Type: n.typ, Name: n.name}
	}
	return rows[0], nil
}

// scopeData is the template data locating n in the catalog: the object
// itself (properties queries), its parent (nodes queries) and the oids of
// the enclosing database, schema and table.
func scopeData(n *node, self bool) map[string]any {
	ids := map[string]any{"did": nil, "scid": nil, "tid": nil}
	setID := func(t NodeType, oid uint32) {
		switch t {
		case TypeDatabase:
			ids["did"] = oid
		case TypeSchema:
			ids["scid"] = oid
		case TypeTable, TypeView:
			ids["tid"] = oid
		}
	}

	setID(n.typ, n.oid)
	for p := n.parent; p != nil; p = p.Parent() {
		setID(p.Type(), p.OID())
	}

	data := map[string]any{"ids": ids}
	if self {
		data["oid"] = n.oid
		data["name"] = n.name
		if n.parent != nil {
			data["parent"] = map[string]any{"oid": n.parent.OID(), "name": n.parent.Name()}
		}
	} else {
		data["parent"] = map[string]any{"oid": n.oid, "name": n.name}
	}
	return data
}

func init() {
	register(&typeSpec{
		typ: TypeServer,
		collections: []CollectionSpec{
			{Key: "databases", Label: "Databases", Child: TypeDatabase},
			{Key: "roles", Label: "Roles", Child: TypeRole},
			{Key: "tablespaces", Label: "Tablespaces", Child: TypeTablespace},
		},
	})
}
