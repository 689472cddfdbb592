package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"airdiscount/internal/common"
)

// protocolVersion is the MCP protocol revision reported by initialize.
const protocolVersion = "2024-11-05"

// rpcServerName identifies this JSON-RPC surface to MCP clients.
const rpcServerName = "mcp-synth"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcErrorObject `json:"error,omitempty"`
}

// contentItem is one element of a tool result: human-readable text or
// the structured payload.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

func rpcOK(id any, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func (s *Server) rpcFail(id any, code int, message string) rpcResponse {
	if s.metrics != nil {
		s.metrics.RPCErrorsInc()
	}
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcErrorObject{Code: code, Message: message}}
}

// rpcCode maps a tool failure onto a JSON-RPC error code: parameter
// problems become -32602, failures with a definite HTTP status reuse
// that status, anything else is a generic server error.
func rpcCode(err error) (int, string) {
	var pe *paramError
	if errors.As(err, &pe) {
		return -32602, "Invalid params: " + pe.Detail
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status, ae.Detail
	}
	return -32000, fmt.Sprintf("Server error: %v", err)
}

// dispatchRPC routes one JSON-RPC payload. It is shared by the HTTP
// endpoint and the WebSocket transport.
func (s *Server) dispatchRPC(ctx context.Context, payload []byte) rpcResponse {
	if s.metrics != nil {
		s.metrics.RPCRequestsInc()
	}

	var req rpcRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return s.rpcFail(nil, -32700, "Parse error")
	}

	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools":   map[string]any{},
				"logging": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    rpcServerName,
				"version": common.Version,
			},
		})
	case "shutdown":
		return rpcOK(req.ID, map[string]any{"shutdown": true})
	case "tools/list":
		return rpcOK(req.ID, map[string]any{"tools": toolDescriptors()})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return s.rpcFail(req.ID, -32601, fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (s *Server) callTool(ctx context.Context, req rpcRequest) rpcResponse {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.rpcFail(req.ID, -32602, fmt.Sprintf("Invalid params: %v", err))
		}
	}
	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	var (
		result map[string]any
		err    error
	)
	switch params.Name {
	case "synth_generate":
		var treq GenerateRequest
		if uerr := json.Unmarshal(args, &treq); uerr != nil {
			return s.rpcFail(req.ID, -32602, fmt.Sprintf("Invalid params: %v", uerr))
		}
		result, err = s.generateTool(ctx, treq)
	case "synth_inspect_model":
		var treq InspectModelRequest
		if uerr := json.Unmarshal(args, &treq); uerr != nil {
			return s.rpcFail(req.ID, -32602, fmt.Sprintf("Invalid params: %v", uerr))
		}
		result, err = s.inspectTool(treq)
	case "preview_table_head":
		var treq PreviewHeadRequest
		if uerr := json.Unmarshal(args, &treq); uerr != nil {
			return s.rpcFail(req.ID, -32602, fmt.Sprintf("Invalid params: %v", uerr))
		}
		result, err = s.previewTool(treq)
	case "export_archive":
		var treq ExportArchiveRequest
		if uerr := json.Unmarshal(args, &treq); uerr != nil {
			return s.rpcFail(req.ID, -32602, fmt.Sprintf("Invalid params: %v", uerr))
		}
		result, err = s.archiveTool(treq)
	default:
		return s.rpcFail(req.ID, -32601, fmt.Sprintf("Unknown tool: %s", params.Name))
	}

	if err != nil {
		code, msg := rpcCode(err)
		return s.rpcFail(req.ID, code, msg)
	}
	return rpcOK(req.ID, result)
}

// toolResult wraps a tool response as MCP content: the rendered text
// followed by the structured payload.
func toolResult(text string, data any) map[string]any {
	return map[string]any{
		"content": []contentItem{
			{Type: "text", Text: text},
			{Type: "json", Data: data},
		},
	}
}

func (s *Server) generateTool(ctx context.Context, req GenerateRequest) (map[string]any, error) {
	p, err := s.normalizeGenerate(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.runGenerate(ctx, p)
	if err != nil {
		return nil, err
	}

	dataJSON, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render generated data: %w", err)
	}
	text := fmt.Sprintf("Command: %s\n\n%s\n\nFiles created: %s\n\nGenerated data:\n%s",
		resp.Command, resp.Message, strings.Join(resp.FilesCreated, ", "), dataJSON)

	logPath := p.LogFile
	if logPath == "" {
		logPath = filepath.Join(p.OutDir, "generation_log.txt")
	}
	logPath, err = s.writeToolLog(logPath, text)
	if err != nil {
		return nil, err
	}
	text += "\n\nOutput also saved to: " + logPath

	return toolResult(text, resp), nil
}

func (s *Server) inspectTool(req InspectModelRequest) (map[string]any, error) {
	resp, err := s.inspectModel(req)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Model directory: %s\n\nFiles (%d):", resp.ModelDir, len(resp.Files))
	for _, f := range resp.Files {
		fmt.Fprintf(&sb, "\n  - %s", f)
	}
	text := sb.String()

	logPath := req.LogFile
	if logPath == "" {
		logPath = filepath.Join(s.settings.DataDir, "synthetic_output", "model_inspection.txt")
	}
	logPath, err = s.writeToolLog(logPath, text)
	if err != nil {
		return nil, err
	}
	text += "\n\nOutput also saved to: " + logPath

	return toolResult(text, resp), nil
}

func (s *Server) previewTool(req PreviewHeadRequest) (map[string]any, error) {
	resp, err := s.previewHead(req)
	if err != nil {
		return nil, err
	}

	rowsJSON, err := json.MarshalIndent(resp.Rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render preview rows: %w", err)
	}
	text := fmt.Sprintf("Preview of %s (first %d rows):\n\n%s", resp.Path, len(resp.Rows), rowsJSON)

	logPath := req.LogFile
	if logPath == "" {
		base := filepath.Base(resp.Path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		logPath = filepath.Join(filepath.Dir(resp.Path), stem+"_preview.txt")
	}
	logPath, err = s.writeToolLog(logPath, text)
	if err != nil {
		return nil, err
	}
	text += "\n\nOutput also saved to: " + logPath

	return toolResult(text, resp), nil
}

func (s *Server) archiveTool(req ExportArchiveRequest) (map[string]any, error) {
	resp, err := s.exportArchive(req)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Archive created: %s\nSize: %s (%d bytes)\nFiles archived (%d):",
		resp.ArchivePath, humanSize(resp.ArchiveSizeBytes), resp.ArchiveSizeBytes, len(resp.FilesArchived))
	for _, f := range resp.FilesArchived {
		fmt.Fprintf(&sb, "\n  - %s", f)
	}
	text := sb.String()

	logPath := req.LogFile
	if logPath == "" {
		base := filepath.Base(resp.ArchivePath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		logPath = filepath.Join(filepath.Dir(resp.ArchivePath), stem+"_log.txt")
	}
	logPath, err = s.writeToolLog(logPath, text)
	if err != nil {
		return nil, err
	}
	text += "\n\nLog saved to: " + logPath

	return toolResult(text, resp), nil
}

// toolDescriptors lists the callable tools with their JSON-schema
// parameter descriptions, as served by tools/list.
func toolDescriptors() []map[string]any {
	return []map[string]any{
		{
			"name":        "synth_generate",
			"description": "Generate synthetic data via the synth CLI",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"model_dir": map[string]any{
						"type":        "string",
						"description": "Path to synth schemas",
						"default":     common.DefaultSynthModelDir,
					},
					"out_dir": map[string]any{
						"type":        "string",
						"description": "Output directory",
						"default":     "data/synthetic_output",
					},
					"size": map[string]any{
						"type":        "integer",
						"description": "Records per collection",
						"minimum":     1,
						"maximum":     common.DefaultSynthMaxRows,
						"default":     common.DefaultSynthSize,
					},
					"seed": map[string]any{
						"type":        "integer",
						"description": "Random seed for reproducibility",
						"default":     common.DefaultSynthSeed,
					},
					"log_file": map[string]any{
						"type":        "string",
						"description": "Optional path to save formatted log output",
						"default":     "",
					},
				},
				"required": []string{},
			},
		},
		{
			"name":        "synth_inspect_model",
			"description": "List files under the synth model directory",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"model_dir": map[string]any{
						"type":        "string",
						"description": "Path to synth schemas",
					},
					"log_file": map[string]any{
						"type":        "string",
						"description": "Optional path to save inspection output",
					},
				},
			},
		},
		{
			"name":        "preview_table_head",
			"description": "Preview the first N rows of a generated file (JSON/NDJSON/CSV)",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to JSON/NDJSON/CSV file (default: data/synthetic_output/generated_data.json)",
					},
					"n": map[string]any{
						"type":        "integer",
						"description": "Number of rows to preview",
						"minimum":     1,
						"maximum":     common.MaxPreviewRows,
					},
					"log_file": map[string]any{
						"type":        "string",
						"description": "Optional path to save preview output",
					},
				},
				"required": []string{},
			},
		},
		{
			"name":        "export_archive",
			"description": "Zip output files into a compressed archive",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source_dir": map[string]any{
						"type":        "string",
						"description": "Directory containing files to archive",
						"default":     "data/synthetic_output",
					},
					"archive_name": map[string]any{
						"type":        "string",
						"description": "Name of the output zip file",
						"default":     "synthetic_data_export.zip",
					},
					"include_patterns": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "File patterns to include (e.g., ['*.json', '*.csv'])",
						"default":     []string{"*.json", "*.csv", "*.txt"},
					},
					"log_file": map[string]any{
						"type":        "string",
						"description": "Optional path to save archive log output",
						"default":     "",
					},
				},
				"required": []string{},
			},
		},
	}
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, common.MaxRequestBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.dispatchRPC(r.Context(), payload))
}
