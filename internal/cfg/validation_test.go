package cfg

import (
	"strings"
	"testing"
	"time"
)

func validTestSettings() Settings {
	return Settings{
		HTTPPort:      8000,
		DatabasePath:  "data/airline_discount.db",
		DataDir:       "data",
		ModelPath:     "models/discount_model.json",
		SynthBin:      "",
		SynthModelDir: "synth_models/airline_data",
		SynthTimeout:  2 * time.Minute,
		SynthMaxRows:  10000,
		LogLevel:      "info",
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{
			name:    "valid settings pass",
			mutate:  func(s *Settings) {},
			wantErr: "",
		},
		{
			name:    "port below range",
			mutate:  func(s *Settings) { s.HTTPPort = 80 },
			wantErr: "HTTP port",
		},
		{
			name:    "port above range",
			mutate:  func(s *Settings) { s.HTTPPort = 70000 },
			wantErr: "HTTP port",
		},
		{
			name:    "port at lower bound passes",
			mutate:  func(s *Settings) { s.HTTPPort = 1024 },
			wantErr: "",
		},
		{
			name:    "port at upper bound passes",
			mutate:  func(s *Settings) { s.HTTPPort = 65535 },
			wantErr: "",
		},
		{
			name:    "empty database path",
			mutate:  func(s *Settings) { s.DatabasePath = "" },
			wantErr: "database path",
		},
		{
			name:    "empty data dir",
			mutate:  func(s *Settings) { s.DataDir = "" },
			wantErr: "data directory",
		},
		{
			name:    "empty model path",
			mutate:  func(s *Settings) { s.ModelPath = "" },
			wantErr: "model path",
		},
		{
			name:    "empty synth model dir",
			mutate:  func(s *Settings) { s.SynthModelDir = "" },
			wantErr: "synth model directory",
		},
		{
			name:    "synth timeout too short",
			mutate:  func(s *Settings) { s.SynthTimeout = 100 * time.Millisecond },
			wantErr: "synth timeout",
		},
		{
			name:    "synth timeout too long",
			mutate:  func(s *Settings) { s.SynthTimeout = time.Hour },
			wantErr: "synth timeout",
		},
		{
			name:    "synth max rows zero",
			mutate:  func(s *Settings) { s.SynthMaxRows = 0 },
			wantErr: "synth max rows",
		},
		{
			name:    "synth max rows above cap",
			mutate:  func(s *Settings) { s.SynthMaxRows = 200000 },
			wantErr: "synth max rows",
		},
		{
			name:    "empty log level",
			mutate:  func(s *Settings) { s.LogLevel = "" },
			wantErr: "log level",
		},
		{
			name:    "empty synth bin is allowed",
			mutate:  func(s *Settings) { s.SynthBin = "" },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := validTestSettings()
			tt.mutate(&settings)

			err := validateSettings(&settings)

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}
