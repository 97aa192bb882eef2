package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/namingd/internal/services"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Server exposes the naming tools over the Model Context Protocol.
type Server struct {
	mcp      *mcp.Server
	services services.Registry
	metrics  *Metrics
	logger   *zap.Logger
}

// Config names the implementation reported during the MCP handshake.
type Config struct {
	Name    string
	Version string
	Logger  *zap.Logger
}

func DefaultConfig() *Config {
	return &Config{Name: "namingd", Version: "dev"}
}

func NewServer(cfg *Config, reg services.Registry) (*Server, error) {
	if reg == nil {
		return nil, errors.New("mcp: service registry is required")
	}
	if reg.Resolver() == nil || reg.Search() == nil || reg.Standards() == nil {
		return nil, errors.New("mcp: resolver, search and standards services are required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	impl := &mcp.Implementation{Name: cfg.Name, Version: cfg.Version}
	s := &Server{
		mcp:      mcp.NewServer(impl, nil),
		services: reg,
		metrics:  NewMetrics(logger),
		logger:   logger.With(zap.String("component", "mcp")),
	}
	s.registerTools()
	return s, nil
}

// Run serves one client over stdin and stdout. It returns when ctx ends or
// the client hangs up.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp serving on stdio")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// Connect starts a session on t without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
