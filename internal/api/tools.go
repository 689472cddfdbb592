package api

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"airdiscount/internal/common"
)

// apiError is a failure with a definite HTTP status. The RPC layer
// reuses the status as the JSON-RPC error code for tool failures.
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string { return e.Detail }

// paramError marks invalid request parameters: HTTP 400, RPC -32602.
type paramError struct {
	Detail string
}

func (e *paramError) Error() string { return e.Detail }

func httpStatus(err error) int {
	var pe *paramError
	if errors.As(err, &pe) {
		return http.StatusBadRequest
	}
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// ensureContained rejects file arguments pointing outside the data and
// synth-model roots.
func (s *Server) ensureContained(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &paramError{fmt.Sprintf("invalid path %q: %v", path, err)}
	}
	for _, root := range []string{s.settings.DataDir, common.SynthModelRoot} {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if underRoot(abs, rootAbs) {
			return nil
		}
	}
	return &apiError{http.StatusForbidden, fmt.Sprintf("access denied: path must be under %s/ or %s/", s.settings.DataDir, common.SynthModelRoot)}
}

func underRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// InspectModelRequest asks for the file listing of a schema directory.
type InspectModelRequest struct {
	ModelDir string `json:"model_dir"`
	LogFile  string `json:"log_file"`
}

// InspectModelResponse lists schema files, sorted.
type InspectModelResponse struct {
	ModelDir string   `json:"model_dir"`
	Files    []string `json:"files"`
}

func (s *Server) inspectModel(req InspectModelRequest) (*InspectModelResponse, error) {
	dir := req.ModelDir
	if dir == "" {
		dir = s.settings.SynthModelDir
	}
	if err := s.ensureContained(dir); err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, &apiError{http.StatusBadRequest, fmt.Sprintf("model dir not found: %s", dir)}
	}

	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list model files: %w", err)
	}
	sort.Strings(files)

	return &InspectModelResponse{ModelDir: dir, Files: files}, nil
}

// PreviewHeadRequest asks for the first rows of a generated file. N is
// a pointer so an omitted field gets the default of 10 rows.
type PreviewHeadRequest struct {
	Path    string `json:"path"`
	N       *int   `json:"n"`
	LogFile string `json:"log_file"`
}

// PreviewHeadResponse returns the previewed rows.
type PreviewHeadResponse struct {
	Path string           `json:"path"`
	Rows []map[string]any `json:"rows"`
}

func (s *Server) previewHead(req PreviewHeadRequest) (*PreviewHeadResponse, error) {
	path := req.Path
	if path == "" {
		path = filepath.Join(s.settings.DataDir, "synthetic_output", "generated_data.json")
	}
	n := 10
	if req.N != nil {
		n = *req.N
	}
	if n < 1 || n > common.MaxPreviewRows {
		return nil, &paramError{fmt.Sprintf("n must be between 1 and %d, got %d", common.MaxPreviewRows, n)}
	}
	if err := s.ensureContained(path); err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, &apiError{http.StatusNotFound, fmt.Sprintf("file not found: %s", path)}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preview file: %w", err)
	}
	rows, err := previewRows(raw, filepath.Ext(path), n)
	if err != nil {
		return nil, &apiError{http.StatusBadRequest, fmt.Sprintf("could not preview file: %v", err)}
	}

	return &PreviewHeadResponse{Path: path, Rows: rows}, nil
}

// previewRows decodes the head of a JSON array, NDJSON stream, or CSV
// file. Anything else is returned as opaque lines.
func previewRows(raw []byte, ext string, n int) ([]map[string]any, error) {
	text := strings.TrimSpace(string(raw))

	switch {
	case strings.HasPrefix(text, "["):
		var data []map[string]any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return nil, err
		}
		if len(data) > n {
			data = data[:n]
		}
		return data, nil

	case strings.Contains(text, "\n") && strings.HasPrefix(text, "{"):
		rows := []map[string]any{}
		for _, ln := range strings.Split(text, "\n") {
			ln = strings.TrimSpace(ln)
			if ln == "" {
				continue
			}
			var row map[string]any
			if err := json.Unmarshal([]byte(ln), &row); err != nil {
				return nil, err
			}
			rows = append(rows, row)
			if len(rows) >= n {
				break
			}
		}
		return rows, nil

	case strings.EqualFold(ext, ".csv"):
		return csvRows(raw, n)

	default:
		rows := []map[string]any{}
		for _, ln := range strings.Split(text, "\n") {
			rows = append(rows, map[string]any{"line": ln})
			if len(rows) >= n {
				break
			}
		}
		return rows, nil
	}
}

func csvRows(raw []byte, n int) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	rows := []map[string]any{}
	for len(rows) < n {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportArchiveRequest asks for a zip of generated output files.
type ExportArchiveRequest struct {
	SourceDir       string   `json:"source_dir"`
	ArchiveName     string   `json:"archive_name"`
	IncludePatterns []string `json:"include_patterns"`
	LogFile         string   `json:"log_file"`
}

// ExportArchiveResponse reports the created archive.
type ExportArchiveResponse struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	ArchivePath      string   `json:"archive_path"`
	FilesArchived    []string `json:"files_archived"`
	ArchiveSizeBytes int64    `json:"archive_size_bytes"`
}

func (s *Server) exportArchive(req ExportArchiveRequest) (*ExportArchiveResponse, error) {
	source := req.SourceDir
	if source == "" {
		source = filepath.Join(s.settings.DataDir, "synthetic_output")
	}
	// Keep the archive next to its source; strip any path from the name.
	name := filepath.Base(req.ArchiveName)
	if name == "." || name == string(filepath.Separator) || req.ArchiveName == "" {
		name = "synthetic_data_export.zip"
	}
	patterns := req.IncludePatterns
	if len(patterns) == 0 {
		patterns = []string{"*.json", "*.csv", "*.txt"}
	}

	if err := s.ensureContained(source); err != nil {
		return nil, err
	}
	if info, err := os.Stat(source); err != nil || !info.IsDir() {
		return nil, &apiError{http.StatusNotFound, fmt.Sprintf("source directory not found: %s", source)}
	}

	seen := make(map[string]bool)
	var files []string
	for _, pat := range patterns {
		matches, err := filepath.Glob(filepath.Join(source, pat))
		if err != nil {
			return nil, &paramError{fmt.Sprintf("bad include pattern %q: %v", pat, err)}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, &apiError{http.StatusNotFound, fmt.Sprintf("no files matching patterns %v found in %s", patterns, source)}
	}

	archivePath := filepath.Join(filepath.Dir(source), name)
	archived, err := writeZip(archivePath, source, files)
	if err != nil {
		return nil, &apiError{http.StatusInternalServerError, fmt.Sprintf("failed to create archive: %v", err)}
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &ExportArchiveResponse{
		Success:          true,
		Message:          fmt.Sprintf("Successfully archived %d files", len(archived)),
		ArchivePath:      archivePath,
		FilesArchived:    archived,
		ArchiveSizeBytes: info.Size(),
	}, nil
}

// writeZip stores the files in a zip archive, named relative to source.
// Directories matched by a glob pattern are skipped.
func writeZip(archivePath, source string, files []string) ([]string, error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	var archived []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(source, file)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(rel)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		archived = append(archived, rel)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return archived, nil
}

// writeToolLog persists a tool's text output, containing the target to
// the allowed roots. Returns the path written.
func (s *Server) writeToolLog(path, text string) (string, error) {
	if err := s.ensureContained(path); err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create log directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write tool log: %w", err)
	}
	return path, nil
}

func humanSize(n int64) string {
	kb := float64(n) / 1024
	if kb >= 1024 {
		return fmt.Sprintf("%.2f MB", kb/1024)
	}
	return fmt.Sprintf("%.2f KB", kb)
}
