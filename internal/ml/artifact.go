package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactVersion tags the on-disk model format. Load rejects artifacts
// whose tag it does not recognize.
const ArtifactVersion = 1

// Artifact is the JSON document written by Save: the version tag plus the
// full state of both pipeline stages. Everything a trained predictor needs
// is in here, so a Load on another machine reproduces predictions exactly.
type Artifact struct {
	Version      int           `json:"version"`
	Preprocessor *Preprocessor `json:"preprocessor"`
	Model        *LinearModel  `json:"model"`
}

// ModelInfo is a read-only snapshot of predictor state for inspection
// endpoints.
type ModelInfo struct {
	Trained            bool      `json:"trained"`
	ArtifactVersion    int       `json:"artifact_version"`
	NumericColumns     []string  `json:"numeric_columns"`
	CategoricalColumns []string  `json:"categorical_columns"`
	FeatureNames       []string  `json:"feature_names,omitempty"`
	Weights            []float64 `json:"weights,omitempty"`
	Intercept          float64   `json:"intercept"`
}

// Save writes the trained state to path as a versioned JSON artifact,
// creating parent directories as needed.
func (p *Predictor) Save(path string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.trained {
		return fmt.Errorf("cannot save untrained model: %w", ErrNotFitted)
	}

	art := Artifact{
		Version:      ArtifactVersion,
		Preprocessor: p.pre,
		Model:        p.model,
	}
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}
	return nil
}

// Load reads a saved artifact and returns a trained predictor that makes
// bit-identical predictions to the instance that wrote it.
func Load(path string) (*Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode model artifact %s: %w", path, err)
	}
	if art.Version != ArtifactVersion {
		return nil, fmt.Errorf("artifact %s has version %d: %w", path, art.Version, ErrBadVersion)
	}
	if art.Preprocessor == nil || art.Model == nil {
		return nil, fmt.Errorf("artifact %s is incomplete: %w", path, ErrBadVersion)
	}

	return &Predictor{
		pre:     art.Preprocessor,
		model:   art.Model,
		trained: true,
	}, nil
}

// Info returns a snapshot of the predictor for inspection endpoints. The
// weight slice is copied so callers cannot mutate trained state.
func (p *Predictor) Info() ModelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	info := ModelInfo{
		Trained:            p.trained,
		ArtifactVersion:    ArtifactVersion,
		NumericColumns:     append([]string(nil), p.pre.NumericColumns...),
		CategoricalColumns: append([]string(nil), p.pre.CategoricalColumns...),
	}
	if p.trained {
		info.FeatureNames = p.pre.FeatureNames()
		info.Weights = append([]float64(nil), p.model.Weights...)
		info.Intercept = p.model.Intercept
	}
	return info
}
