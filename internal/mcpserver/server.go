// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package mcpserver exposes the portal queries as Model Context Protocol
// tools over stdio.
//
// One server holds one portal client, so credentials and the release
// database are resolved once per process. Tool failures are returned as a
// JSON object with "error" and, when available, "hints".
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ncihtan/htan-claude/internal/credentials"
	herrors "github.com/ncihtan/htan-claude/internal/errors"
	"github.com/ncihtan/htan-claude/internal/logging"
	"github.com/ncihtan/htan-claude/internal/portal"
	"github.com/ncihtan/htan-claude/internal/rows"
	"github.com/ncihtan/htan-claude/internal/setup"
	"github.com/ncihtan/htan-claude/internal/synapse"
)

// Name is the advertised server name.
const Name = "htan-portal"

// StatusFunc reports the local credential configuration.
type StatusFunc func(ctx context.Context) setup.Status

// Server registers the HTAN tools on an MCP server.
type Server struct {
	portal  *portal.Client
	status  StatusFunc
	log     *zap.Logger
	version string
	mcp     *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches a diagnostic logger. Stdout carries the protocol, so
// the logger must write elsewhere.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithVersion sets the advertised server version.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// New builds a server over pc. status backs the setup-status tool.
func New(pc *portal.Client, status StatusFunc, opts ...Option) *Server {
	s := &Server{portal: pc, status: status, log: zap.NewNop(), version: "dev"}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logging.Component("mcp"))
	s.mcp = server.NewMCPServer(Name, s.version, server.WithToolCapabilities(false))
	s.register()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks the protocol on in and out until ctx is done or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.log))
	s.log.Info("mcp server listening on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) register() {
	s.mcp.AddTool(mcp.NewTool("htan_portal_query",
		mcp.WithDescription("Run a read-only SQL query against the HTAN portal ClickHouse database.\n\n"+
			"Only SELECT, WITH, SHOW, DESCRIBE, and EXPLAIN queries are allowed. "+
			"Key tables: files, demographics, diagnosis, cases, specimen, atlases, publication_manifest. "+
			"Array columns in the files table (organType, Gender, Race, etc.) require arrayExists() for filtering. "+
			"Use <> instead of != for not-equal comparisons."),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SQL query to execute (read-only)")),
		mcp.WithNumber("limit", mcp.DefaultNumber(portal.SQLDefaultLimit),
			mcp.Description("Maximum rows to return (auto-applied if no LIMIT clause)")),
	), s.handleQuery)

	s.mcp.AddTool(mcp.NewTool("htan_portal_files",
		mcp.WithDescription("Search for HTAN data files with optional filters. Returns DataFileID, Filename, "+
			"FileFormat, assay, level, organ, atlas, synapseId (open access) and drs_uri (controlled access)."),
		mcp.WithString("organ", mcp.Description(`Filter by organ type (e.g., "Breast", "Colon", "Lung")`)),
		mcp.WithString("assay", mcp.Description(`Filter by assay name (e.g., "scRNA-seq", "CyCIF", "CODEX")`)),
		mcp.WithString("atlas", mcp.Description(`Filter by atlas name (e.g., "HTAN HMS", "HTAN WUSTL")`)),
		mcp.WithString("level", mcp.Description(`Filter by data level (e.g., "Level 1", "Level 3")`)),
		mcp.WithString("data_file_id", mcp.Description("Exact match on HTAN_Data_File_ID (comma-separated for multiple)")),
		mcp.WithNumber("limit", mcp.DefaultNumber(portal.DefaultLimit), mcp.Description("Maximum rows to return")),
	), s.handleFiles)

	s.mcp.AddTool(mcp.NewTool("htan_portal_summary",
		mcp.WithDescription("Get an overview of HTAN data: file and participant counts by atlas, assay, and organ."),
	), s.handleSummary)

	s.mcp.AddTool(mcp.NewTool("htan_portal_tables",
		mcp.WithDescription("List all available tables in the current HTAN portal database."),
	), s.handleTables)

	s.mcp.AddTool(mcp.NewTool("htan_portal_describe",
		mcp.WithDescription("Describe the schema of a portal table: column names, types, and row count."),
		mcp.WithString("table", mcp.Required(), mcp.Description(`Table name (e.g., "files", "demographics")`)),
	), s.handleDescribe)

	s.mcp.AddTool(mcp.NewTool("htan_portal_clinical",
		mcp.WithDescription("Query clinical data from the HTAN portal (demographics, diagnosis, cases, specimen)."),
		mcp.WithString("table", mcp.Required(), mcp.Description(`One of: "cases", "demographics", "diagnosis", "specimen"`)),
		mcp.WithString("organ", mcp.Description("Filter by organ/tissue (diagnosis, cases, specimen)")),
		mcp.WithString("atlas", mcp.Description(`Filter by atlas name (e.g., "HTAN HMS", "HTAN OHSU")`)),
		mcp.WithNumber("limit", mcp.DefaultNumber(portal.DefaultLimit), mcp.Description("Maximum rows to return")),
	), s.handleClinical)

	s.mcp.AddTool(mcp.NewTool("htan_portal_manifest",
		mcp.WithDescription("Generate download manifest data for HTAN Data File IDs: Synapse IDs for open access "+
			"and DRS URIs for Gen3/CRDC controlled access."),
		mcp.WithArray("file_ids", mcp.Required(),
			mcp.Description(`HTAN_Data_File_IDs (e.g., ["HTA9_1_19512", "HTA9_1_19553"])`),
			mcp.Items(map[string]any{"type": "string"})),
	), s.handleManifest)

	s.mcp.AddTool(mcp.NewTool("htan_setup_status",
		mcp.WithDescription("Check whether Synapse, portal, Gen3 and BigQuery credentials are configured on this machine."),
	), s.handleStatus)
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sql, err := req.RequireString("sql")
	if err != nil {
		return s.fail(herrors.Wrap(herrors.InvalidInput, "Missing sql argument", err))
	}
	rs, err := s.portal.Query(ctx, sql, req.GetInt("limit", portal.SQLDefaultLimit), false)
	if err != nil {
		return s.fail(err)
	}
	return s.rowsResult(ctx, nil, rs)
}

func (s *Server) handleFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := portal.FileFilter{
		Organ: req.GetString("organ", ""),
		Assay: req.GetString("assay", ""),
		Atlas: req.GetString("atlas", ""),
		Level: req.GetString("level", ""),
		Limit: req.GetInt("limit", portal.DefaultLimit),
	}
	for _, id := range strings.Split(req.GetString("data_file_id", ""), ",") {
		if id = strings.TrimSpace(id); id != "" {
			f.DataFileIDs = append(f.DataFileIDs, id)
		}
	}
	rs, err := s.portal.FindFiles(ctx, f)
	if err != nil {
		return s.fail(err)
	}
	return s.rowsResult(ctx, nil, rs)
}

func (s *Server) handleSummary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.portal.Summary(ctx)
	if err != nil {
		return s.fail(err)
	}
	return s.result(sum)
}

func (s *Server) handleTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tables, err := s.portal.ListTables(ctx)
	if err != nil {
		return s.fail(err)
	}
	db, err := s.portal.Database(ctx)
	if err != nil {
		return s.fail(err)
	}
	return s.result(map[string]any{"database": db, "tables": tables, "count": len(tables)})
}

func (s *Server) handleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := req.RequireString("table")
	if err != nil {
		return s.fail(herrors.Wrap(herrors.InvalidInput, "Missing table argument", err))
	}
	info, err := s.portal.DescribeTable(ctx, table)
	if err != nil {
		return s.fail(err)
	}
	if info.ColumnCount == 0 {
		return s.fail(herrors.Newf(herrors.NotFound, "No schema found for table '%s'", table))
	}
	return s.result(info)
}

func (s *Server) handleClinical(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table, err := req.RequireString("table")
	if err != nil {
		return s.fail(herrors.Wrap(herrors.InvalidInput, "Missing table argument", err))
	}
	rs, err := s.portal.Clinical(ctx, portal.ClinicalFilter{
		Table: table,
		Organ: req.GetString("organ", ""),
		Atlas: req.GetString("atlas", ""),
		Limit: req.GetInt("limit", portal.DefaultLimit),
	})
	if err != nil {
		return s.fail(err)
	}
	return s.rowsResult(ctx, map[string]any{"table": table}, rs)
}

type manifestFile struct {
	DataFileID string `json:"DataFileID"`
	Filename   string `json:"Filename"`
	SynapseID  string `json:"synapseId,omitempty"`
	DRSURI     string `json:"drs_uri,omitempty"`
}

func (s *Server) handleManifest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids := req.GetStringSlice("file_ids", nil)
	res, err := s.portal.Manifest(ctx, ids)
	if err != nil {
		return s.fail(err)
	}
	db, err := s.portal.Database(ctx)
	if err != nil {
		return s.fail(err)
	}
	syn := make([]manifestFile, 0, len(res.Synapse))
	for _, e := range res.Synapse {
		syn = append(syn, manifestFile{DataFileID: e.DataFileID, Filename: e.Filename, SynapseID: e.SynapseID})
	}
	g3 := make([]manifestFile, 0, len(res.Gen3))
	for _, e := range res.Gen3 {
		g3 = append(g3, manifestFile{DataFileID: e.DataFileID, Filename: e.Filename, DRSURI: e.DRSURI})
	}
	return s.result(map[string]any{
		"database":        db,
		"total_found":     len(res.Files),
		"total_requested": len(ids),
		"not_found":       res.NotFound,
		"synapse_files":   syn,
		"gen3_files":      g3,
	})
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.result(setup.Report{OK: true, Status: s.status(ctx)})
}

// rowsResult wraps rows with the database name and row count. extra keys
// are merged in.
func (s *Server) rowsResult(ctx context.Context, extra map[string]any, rs []*rows.Row) (*mcp.CallToolResult, error) {
	db, err := s.portal.Database(ctx)
	if err != nil {
		return s.fail(err)
	}
	if rs == nil {
		rs = []*rows.Row{}
	}
	out := map[string]any{"database": db, "row_count": len(rs), "rows": rs}
	for k, v := range extra {
		out[k] = v
	}
	return s.result(out)
}

func (s *Server) result(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorBody is the JSON shape of a failed tool call.
type errorBody struct {
	Error string   `json:"error"`
	Hints []string `json:"hints,omitempty"`
}

// fail reports err to the client as a JSON error object. Missing portal
// credentials without a Synapse token get the Synapse setup steps.
func (s *Server) fail(err error) (*mcp.CallToolResult, error) {
	var cfgErr *credentials.ConfigError
	if errors.As(err, &cfgErr) && synapse.LoadToken() == "" {
		err = setup.ErrNoSynapse
	}
	s.log.Warn("tool failed", zap.Error(err))
	return s.result(errorBody{Error: err.Error(), Hints: herrors.HintsOf(err)})
}
