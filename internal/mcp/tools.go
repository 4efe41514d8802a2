package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) collectOptions(input CollectInput) (application.CollectOptions, error) {
	opts := application.CollectOptions{
		ConfigPath: coalesce(input.ConfigPath, s.config.ConfigPath),
		Root:       coalesce(input.Root, s.config.Root),
		Reports:    input.Reports,
	}
	if input.Format != "" {
		format, err := domain.ParseReportFormat(input.Format)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	return opts, nil
}

// handleCollect implements the collect tool.
func (s *Server) handleCollect(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CollectInput,
) (*mcp.CallToolResult, CollectOutput, error) {
	opts, err := s.collectOptions(input)
	if err != nil {
		return nil, CollectOutput{Error: err.Error()}, nil
	}

	result, err := s.svc.Collect(ctx, opts)
	if err != nil {
		return nil, CollectOutput{Error: err.Error()}, nil
	}

	output := CollectOutput{
		Coverage: result.Coverage,
		Percent:  result.Percent,
		Policy:   string(result.Policy),
		Skipped:  result.Skipped,
		Summary:  collectSummary(result),
	}
	for _, m := range result.Measurements {
		output.Reports = append(output.Reports, m.Path)
	}
	return nil, output, nil
}

// handleCompare implements the compare tool. It never publishes comments.
func (s *Server) handleCompare(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input CompareInput,
) (*mcp.CallToolResult, CompareOutput, error) {
	collect, err := s.collectOptions(input.collect())
	if err != nil {
		return nil, CompareOutput{Error: err.Error()}, nil
	}

	result, err := s.svc.Compare(ctx, application.CompareOptions{
		CollectOptions: collect,
		RepoURL:        input.RepoURL,
		Branch:         input.Branch,
		Label:          input.Label,
		Reference:      input.Reference,
	})
	if err != nil {
		return nil, CompareOutput{Error: err.Error()}, nil
	}

	return nil, CompareOutput{
		Coverage:        result.Coverage,
		Reference:       result.Reference,
		ReferenceSource: result.ReferenceSource,
		Change:          result.Change,
		Color:           result.Color,
		Summary:         result.Console,
		Comment:         result.Comment,
	}, nil
}

// handleRecord implements the record tool.
func (s *Server) handleRecord(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RecordInput,
) (*mcp.CallToolResult, RecordOutput, error) {
	collect, err := s.collectOptions(input.collect())
	if err != nil {
		return nil, RecordOutput{Error: err.Error()}, nil
	}

	result, err := s.svc.Record(ctx, application.RecordOptions{
		CollectOptions: collect,
		RepoURL:        input.RepoURL,
		Branch:         input.Branch,
		Commit:         input.Commit,
	})
	if err != nil {
		return nil, RecordOutput{Error: err.Error(), Summary: "Failed to record coverage"}, nil
	}

	return nil, RecordOutput{
		Key:      result.Entry.Key,
		Coverage: result.Entry.Coverage,
		Previous: result.Previous,
		Existed:  result.Existed,
		Summary:  fmt.Sprintf("Recorded %s for %s", domain.FormatWholeNoSign(result.Entry.Coverage), result.Entry.Key),
	}, nil
}

// collectSummary creates a one-line summary of a collection.
func collectSummary(result application.CollectResult) string {
	summary := fmt.Sprintf("%s from %d reports (%s)",
		domain.FormatWholeNoSign(result.Coverage), len(result.Measurements), result.Policy)
	if n := len(result.Skipped); n > 0 {
		summary += fmt.Sprintf(", %d skipped", n)
	}
	return summary
}
