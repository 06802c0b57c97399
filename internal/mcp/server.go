package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"interestsync/internal/config"
	"interestsync/internal/store"
)

// Server exposes read-only views of the derived interests over MCP.
type Server struct {
	cfg *config.ProjectConfig
	db  store.Store
	mcp *sdk.Server
}

func NewServer(cfg *config.ProjectConfig, db store.Store, version string) *Server {
	s := &Server{
		cfg: cfg,
		db:  db,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "interestsync",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
