package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/p0pkit/internal/core/config"
	"github.com/neilberkman/p0pkit/internal/core/db"
	"github.com/neilberkman/p0pkit/internal/core/lossrate"
	"github.com/neilberkman/p0pkit/internal/core/recorder"
	"github.com/neilberkman/p0pkit/pkg/p0plog"
)

// AnalyzeLossArgs defines arguments for the analyze_loss tool
type AnalyzeLossArgs struct {
	Path          string `json:"path" jsonschema:"description=Path to the server log,required"`
	ExpectedLines int    `json:"expected_lines,omitempty" jsonschema:"description=Packets a complete session sends (default from config)"`
	Record        bool   `json:"record,omitempty" jsonschema:"description=Save the analysis to the history database"`
}

// ListRunsArgs defines arguments for the list_runs tool
type ListRunsArgs struct {
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max runs to return (default: 20)"`
	Kind  string `json:"kind,omitempty" jsonschema:"description=loss or swarm"`
	Since string `json:"since,omitempty" jsonschema:"description=Only runs after this date (ISO 8601)"`
}

// GetRunArgs defines arguments for the get_run tool
type GetRunArgs struct {
	Kind string `json:"kind" jsonschema:"description=loss or swarm,required"`
	ID   int64  `json:"id" jsonschema:"description=Run id,required"`
}

// LossResult is the analyze_loss response
type LossResult struct {
	*lossrate.Report
	AverageRate  float64 `json:"average_rate"`
	AnomalyCount int     `json:"anomaly_count"`
	Summary      string  `json:"summary,omitempty"`
	RunID        int64   `json:"run_id,omitempty"`
}

// RunSummary represents a run in the list view
type RunSummary struct {
	Kind      string `json:"kind"`
	ID        int64  `json:"id"`
	CreatedAt string `json:"created_at"`
	Label     string `json:"label"`
	Count     int    `json:"count"`
	TotalLost int    `json:"total_lost,omitempty"`
	Problems  int    `json:"problems"`
}

// StartServer starts the MCP server
func StartServer(dbPath string) error {
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			log.Printf("Error closing database: %v", closeErr)
		}
	}()

	return server.ServeStdio(NewServer(database))
}

// NewServer registers the p0pkit tools on a new MCP server
func NewServer(database *db.DB) *server.MCPServer {
	s := server.NewMCPServer(
		"p0pkit",
		"1.0.0",
	)

	analyzeTool := mcp.NewTool("analyze_loss",
		mcp.WithDescription("Analyze a P0P server log for per-session packet loss. Returns each session's loss rate, or its missing sequence numbers when the session has gaps, plus the average loss rate."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the server log")),
		mcp.WithNumber("expected_lines",
			mcp.Description("Packets a complete session sends (default: 58936)")),
		mcp.WithBoolean("record",
			mcp.Description("If true, saves the analysis to the history database")),
	)
	s.AddTool(analyzeTool, makeAnalyzeLossHandler(database))

	listTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List recorded loss analyses and client swarm runs, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max runs to return (default: 20)")),
		mcp.WithString("kind",
			mcp.Description("Filter by kind: 'loss' or 'swarm'")),
		mcp.WithString("since",
			mcp.Description("Only runs after this date (ISO 8601 format, e.g. '2025-01-01')")),
	)
	s.AddTool(listTool, makeListRunsHandler(database))

	getTool := mcp.NewTool("get_run",
		mcp.WithDescription("Retrieve a recorded run with its per-session or per-client rows"),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("'loss' or 'swarm'")),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Run id from list_runs")),
	)
	s.AddTool(getTool, makeGetRunHandler(database))

	return s
}

func makeAnalyzeLossHandler(database *db.DB) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AnalyzeLossArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.Path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		expected := args.ExpectedLines
		if expected <= 0 {
			cfg, err := config.Load()
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to load config: %v", err)), nil
			}
			expected = cfg.ExpectedLines
		}

		path, err := filepath.Abs(args.Path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
		}

		logFile, err := p0plog.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		report := lossrate.New(expected).Analyze(logFile)
		result := LossResult{
			Report:       report,
			AverageRate:  report.Rate(),
			AnomalyCount: report.AnomalyCount(),
		}
		if len(report.Sessions) > 0 {
			result.Summary = report.Summary()
		}

		if args.Record {
			run, _, err := recorder.New(database).RecordAnalysis(report, logFile.Size)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to record analysis: %v", err)), nil
			}
			result.RunID = run.ID
		}

		resultJSON, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeListRunsHandler(database *db.DB) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListRunsArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		limit := args.Limit
		if limit == 0 {
			limit = 20
		}

		filter := db.RunFilter{Kind: args.Kind, Limit: limit}
		if args.Since != "" {
			since, err := parseSince(args.Since)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			filter.Since = since
		}

		coreRuns, err := database.ListRuns(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}

		runs := []RunSummary{}
		for _, r := range coreRuns {
			runs = append(runs, RunSummary{
				Kind:      r.Kind,
				ID:        r.ID,
				CreatedAt: r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				Label:     r.Label,
				Count:     r.Count,
				TotalLost: r.TotalLost,
				Problems:  r.Problems,
			})
		}

		resultJSON, err := json.Marshal(map[string]interface{}{
			"runs": runs,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeGetRunHandler(database *db.DB) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetRunArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		var run interface{}
		var err error
		switch args.Kind {
		case db.KindLoss:
			run, err = database.GetAnalysis(args.ID)
		case db.KindSwarm:
			run, err = database.GetSwarm(args.ID)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", args.Kind)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run not found: %v", err)), nil
		}

		resultJSON, err := json.Marshal(run)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func parseSince(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want ISO 8601)", s)
}
