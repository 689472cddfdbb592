// Package synth shells out to the external synth CLI to generate
// synthetic airline data from a schema directory, and loads the
// generated collections into the relational store.
package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"airdiscount/internal/cfg"
)

// GeneratedPassenger is one passenger record emitted by the generator.
// TravelHistory is kept as raw JSON so whatever shape the schema
// produces is stored verbatim.
type GeneratedPassenger struct {
	Name          string          `json:"name"`
	TravelHistory json.RawMessage `json:"travel_history"`
}

// GeneratedRoute is one route record emitted by the generator.
type GeneratedRoute struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DistanceMiles float64 `json:"distance"`
}

// GeneratedDiscount is one discount record emitted by the generator.
// Passenger and route links are assigned at load time.
type GeneratedDiscount struct {
	DiscountValue float64 `json:"discount_value"`
}

// Dataset is the parsed output of one generation run: one slice per
// collection in the schema directory. Collections the loader does not
// know about are ignored.
type Dataset struct {
	Passengers []GeneratedPassenger `json:"passengers"`
	Routes     []GeneratedRoute     `json:"routes"`
	Discounts  []GeneratedDiscount  `json:"discounts"`
}

// Total returns the number of generated records across all collections.
func (d *Dataset) Total() int {
	return len(d.Passengers) + len(d.Routes) + len(d.Discounts)
}

// ParseDataset decodes the generator's stdout into a Dataset.
func ParseDataset(raw []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse synth output: %w", err)
	}
	return &ds, nil
}

// Command returns the argv used to generate size records from modelDir,
// as reported back to API callers.
func Command(modelDir string, size, seed int) []string {
	return []string{
		"synth", "generate", modelDir,
		"--size", strconv.Itoa(size),
		"--seed", strconv.Itoa(seed),
	}
}

// Runner invokes the synth CLI with a bounded timeout.
type Runner struct {
	bin     string
	binErr  error
	timeout time.Duration
	maxRows int
}

// New resolves the synth binary from settings and returns a Runner.
// When no binary can be found the Runner is still usable; Generate
// reports the resolution error so the service can run degraded.
func New(settings *cfg.Settings) *Runner {
	bin, err := FindBinary(settings.SynthBin)
	if err != nil {
		log.Warn().Err(err).Msg("Synth binary not found, generation disabled")
	}
	return &Runner{
		bin:     bin,
		binErr:  err,
		timeout: settings.SynthTimeout,
		maxRows: settings.SynthMaxRows,
	}
}

// NewWithBinary returns a Runner that invokes an explicit binary path.
func NewWithBinary(bin string, timeout time.Duration, maxRows int) *Runner {
	return &Runner{bin: bin, timeout: timeout, maxRows: maxRows}
}

// Available reports whether a synth binary was resolved.
func (r *Runner) Available() bool {
	return r.binErr == nil
}

// Generate runs `synth generate <modelDir> --size N --seed S`, parses
// stdout into a Dataset, and also returns the raw stdout so callers can
// persist it unchanged.
func (r *Runner) Generate(ctx context.Context, modelDir string, size, seed int) (*Dataset, []byte, error) {
	if r.binErr != nil {
		return nil, nil, fmt.Errorf("synth binary unavailable: %w", r.binErr)
	}
	if size < 1 {
		return nil, nil, fmt.Errorf("size must be at least 1, got %d", size)
	}
	if r.maxRows > 0 && size > r.maxRows {
		return nil, nil, fmt.Errorf("size %d exceeds limit %d", size, r.maxRows)
	}
	if info, err := os.Stat(modelDir); err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("synth model directory %s not found", modelDir)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := Command(modelDir, size, seed)[1:]
	cmd := exec.CommandContext(runCtx, r.bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("bin", r.bin).
			Str("model_dir", modelDir).
			Int("size", size).
			Str("stderr", stderr.String()).
			Msg("Synth generation failed")

		if runCtx.Err() == context.DeadlineExceeded {
			return nil, nil, fmt.Errorf("synth generation timeout after %v", r.timeout)
		}
		if strings.Contains(stderr.String(), "No such file or directory") {
			return nil, nil, fmt.Errorf("synth model files not accessible: %w", err)
		}
		return nil, nil, fmt.Errorf("synth generate failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	ds, err := ParseDataset(stdout.Bytes())
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("model_dir", modelDir).
		Int("size", size).
		Int("seed", seed).
		Int("records", ds.Total()).
		Dur("took", time.Since(start)).
		Msg("Synth generation complete")

	return ds, stdout.Bytes(), nil
}

// FindBinary resolves the synth executable: an explicit path or command
// name from configuration wins, then $PATH, then the installer's
// default location under the user's home directory.
func FindBinary(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		if path, err := exec.LookPath(explicit); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("configured synth binary %s not found", explicit)
	}

	if path, err := exec.LookPath("synth"); err == nil {
		return path, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".synth", "bin", "synth")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("synth binary not found in PATH or ~/.synth/bin; set SYNTH_BIN or install synth")
}
