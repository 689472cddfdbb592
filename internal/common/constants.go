package common

import "time"

// Version is the service version reported by /version and the client CLI.
const Version = "0.1.0"

// Environment variable keys
const (
	EnvConfigFile    = "CONFIG_FILE"
	EnvHTTPPort      = "HTTP_PORT"
	EnvDatabasePath  = "DATABASE_PATH"
	EnvDataDir       = "DATA_DIR"
	EnvModelPath     = "MODEL_PATH"
	EnvSynthBin      = "SYNTH_BIN"
	EnvSynthModelDir = "SYNTH_MODEL_DIR"
	EnvSynthTimeout  = "SYNTH_TIMEOUT"
	EnvSynthMaxRows  = "SYNTH_MAX_ROWS"
	EnvLogLevel      = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultHTTPPort      = 8000
	DefaultDatabasePath  = "data/airline_discount.db"
	DefaultDataDir       = "data"
	DefaultModelPath     = "models/discount_model.json"
	DefaultSynthModelDir = "synth_models/airline_data"
	DefaultSynthTimeout  = 2 * time.Minute
	DefaultSynthMaxRows  = 10000
	DefaultLogLevel      = "info"

	// Defaults applied by the synth-generation endpoint when the request
	// leaves a field unset.
	DefaultSynthSize = 5
	DefaultSynthSeed = 42
)

// Synth model directory root that file arguments must stay under, together
// with the data directory. Requests naming paths outside these roots are
// rejected.
const SynthModelRoot = "synth_models"

// Validation constants
const (
	MinHTTPPort     = 1024
	MaxHTTPPort     = 65535
	MinSynthRows    = 1
	MaxSynthRows    = 100000
	MaxPreviewRows  = 200
	MaxRequestBytes = 1 << 20 // 1 MiB request body cap on JSON endpoints
)
