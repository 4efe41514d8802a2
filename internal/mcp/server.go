package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the application service with MCP protocol handling.
type Server struct {
	svc    Service
	config Config
	server *mcp.Server
}

// New creates a new MCP server wrapping the given service.
func New(svc Service, cfg Config, version string) *Server {
	defaults := DefaultConfig()
	cfg.ConfigPath = coalesce(cfg.ConfigPath, defaults.ConfigPath)
	cfg.Root = coalesce(cfg.Root, defaults.Root)

	s := &Server{svc: svc, config: cfg}
	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "covstatus", Version: version},
		&mcp.ServerOptions{
			Capabilities: &mcp.ServerCapabilities{
				Tools:     &mcp.ToolCapabilities{},
				Resources: &mcp.ResourceCapabilities{},
			},
		},
	)
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves over stdio and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcp.StdioTransport{})
}

// RunWithTransport serves over the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcp.Transport) error {
	if err := s.server.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "collect",
		Description: "Find Cobertura, JaCoCo, Clover and SimpleCov reports in the workspace and aggregate them into one coverage value.",
	}, s.handleCollect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "compare",
		Description: "Compare the current coverage with the recorded reference and return the status message, color and pull request comment.",
	}, s.handleCompare)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "record",
		Description: "Store the current coverage as the reference for a repository branch.",
	}, s.handleRecord)
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         "covstatus://config",
		Name:        "Current Configuration",
		Description: "Effective covstatus configuration, defaults applied",
		MIMEType:    "application/json",
	}, s.handleConfigResource)

	s.server.AddResource(&mcp.Resource{
		URI:         "covstatus://reference",
		Name:        "Reference Coverage",
		Description: "Coverage recorded per repository branch",
		MIMEType:    "application/json",
	}, s.handleReferenceResource)
}
