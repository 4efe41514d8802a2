package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// handleConfigResource returns the effective configuration.
func (s *Server) handleConfigResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	cfg, err := s.svc.Config(s.config.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return jsonResource(req.Params.URI, cfg)
}

// handleReferenceResource returns every recorded reference entry.
func (s *Server) handleReferenceResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	refs, err := s.svc.References(s.config.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load references: %w", err)
	}
	return jsonResource(req.Params.URI, refs)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
