// Package scripting serves scripting/script: DDL generation for objects of
// an object explorer session.
package scripting

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/jsonrpc"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/smo"
)

// MethodScript is the scripting request.
const MethodScript = "scripting/script"

// ObjectResolver finds the object a node path denotes within a session.
type ObjectResolver interface {
	ResolveObject(sessionID, path string) (smo.Object, error)
}

// ScriptParams are the parameters of scripting/script.
type ScriptParams struct {
	SessionID string `json:"sessionId"`
	NodePath  string `json:"nodePath"`
	Operation string `json:"operation"`
}

// ScriptResult is the result of scripting/script.
type ScriptResult struct {
	OperationID string `json:"operationId"`
	Script      string `json:"script"`
}

// Service generates scripts.
type Service struct {
	objects ObjectResolver
	logger  *slog.Logger
}

// NewService creates the scripting service.
func NewService(objects ObjectResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{objects: objects, logger: logger}
}

// Register installs the service's handler.
func (s *Service) Register(srv *jsonrpc.Server) {
	srv.Handle(MethodScript, s.handleScript)
}

// Script builds the operation's script for the object at path.
func (s *Service) Script(ctx context.Context, params ScriptParams) (*ScriptResult, error) {
	switch params.Operation {
	case smo.OpCreate, smo.OpUpdate, smo.OpDelete:
	default:
		return nil, jsonrpc.InvalidParams("operation must be one of create, update, delete; got %q", params.Operation)
	}

	obj, err := s.objects.ResolveObject(params.SessionID, params.NodePath)
	if err != nil {
		return nil, err
	}
	script, err := smo.BuildScript(ctx, obj, params.Operation)
	if err != nil {
		s.logger.Info("script failed", "session", params.SessionID, "path", params.NodePath,
			"operation", params.Operation, "error", err)
		return nil, err
	}

	result := &ScriptResult{OperationID: uuid.NewString(), Script: script}
	s.logger.Debug("script generated", "session", params.SessionID, "path", params.NodePath,
		"operation", params.Operation, "operation_id", result.OperationID)
	return result, nil
}

func (s *Service) handleScript(ctx context.Context, raw json.RawMessage) (any, error) {
	var params ScriptParams
	if err := jsonrpc.DecodeParams(raw, &params); err != nil {
		return nil, err
	}
	return s.Script(ctx, params)
}
