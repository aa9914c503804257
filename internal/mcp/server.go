package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"worldline/internal/timeline"
)

type Server struct {
	service *timeline.Service
	mcp     *sdk.Server
}

func NewServer(service *timeline.Service, version string) *Server {
	s := &Server{
		service: service,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "worldline",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
