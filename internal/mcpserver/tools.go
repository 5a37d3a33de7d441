package mcpserver

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/validate"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// maxListedFailures caps the failing results echoed by validate_csv; the
// persisted report has all of them.
const maxListedFailures = 20

func (s *Server) registerValidationTools() {
	s.addTool(mcp.NewTool("validate_csv",
		mcp.WithDescription("Validate a CSV file against the ingestion schema and return the outcome, statistics and failing expectations"),
		mcp.WithString("path", mcp.Description("CSV file to validate (optional, defaults to the staged file)")),
		mcp.WithBoolean("save", mcp.Description("Persist the JSON report (default true)")),
	), s.handleValidateCSV)

	s.addTool(mcp.NewTool("get_report",
		mcp.WithDescription("Read a persisted validation report by input name, e.g. \"staged\" or \"staged_result.json\""),
		mcp.WithString("name", mcp.Description("Input stem or report file name"), mcp.Required()),
	), s.handleGetReport)
}

func (s *Server) registerRunTools() {
	s.addTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent validation runs from the run history, newest first"),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
	), s.handleListRuns)

	s.addTool(mcp.NewTool("get_run",
		mcp.WithDescription("Fetch one recorded run and its full report"),
		mcp.WithString("runId", mcp.Description("Run ID"), mcp.Required()),
	), s.handleGetRun)
}

type validateResult struct {
	ValidationOK bool              `json:"validation_ok"`
	RunID        string            `json:"run_id"`
	CSV          string            `json:"csv"`
	Statistics   report.Statistics `json:"statistics"`
	Failing      []report.Result   `json:"failing,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	ReportPath   string            `json:"report_path,omitempty"`
	PersistError string            `json:"persist_error,omitempty"`
}

func (s *Server) handleValidateCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if strings.TrimSpace(path) == "" {
		path = s.stagedPath
	}
	save := true
	if v, ok := args["save"].(bool); ok {
		save = v
	}

	out, err := s.service.Run(ctx, path, validate.RunOptions{Save: save})
	if err != nil {
		return errorResult(err), nil
	}

	res := validateResult{
		ValidationOK: out.Passed(),
		RunID:        out.RunID.String(),
		CSV:          path,
		Statistics:   out.Report.Statistics,
		Failing:      out.Report.Failing(maxListedFailures),
		Truncated:    len(out.Report.Results) > maxListedFailures,
		ReportPath:   out.ReportPath,
	}
	if out.PersistErr != nil {
		res.PersistError = validate.FormatUserError(out.PersistErr)
	}
	return jsonResult(res)
}

func (s *Server) handleGetReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return textResultError("name must be a bare report name"), nil
	}
	if !strings.HasSuffix(name, "_result.json") {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "_result.json"
	}

	r, err := report.Read(filepath.Join(s.service.ReportDir(), name))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(r)
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 20
	// Numbers arrive as float64 from JSON.
	if v, ok := req.GetArguments()["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	runs, err := s.runs.Recent(ctx, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := req.GetArguments()["runId"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return textResultError("runId must be a UUID"), nil
	}
	run, r, err := s.runs.Get(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"run": run, "report": r})
}

func textResultError(msg string) *mcp.CallToolResult {
	res := textResult(msg)
	res.IsError = true
	return res
}
