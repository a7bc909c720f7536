package suite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/pkg/client"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write suite file: %v", err)
	}
	return path
}

func TestLoad_FullSuite(t *testing.T) {
	path := writeSuite(t, `
version: 1
defaults:
  service: yolo
  delay_ms: 200
  check_drift_every: 5
runs:
  - scenario: baseline
    count: 20
  - scenario: drift-brightness
  - scenario: drift-complexity
    service: vqa
    delay_ms: 50
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(s.Runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(s.Runs))
	}

	configs, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if configs[0].Name != "baseline" || configs[0].Count != 20 {
		t.Errorf("run 0 = %s/%d, want baseline/20", configs[0].Name, configs[0].Count)
	}
	if configs[0].Delay != 200*time.Millisecond {
		t.Errorf("run 0 delay = %v, want 200ms from defaults", configs[0].Delay)
	}
	if configs[0].CheckDriftEvery != 5 {
		t.Errorf("run 0 check_drift_every = %d, want 5 from defaults", configs[0].CheckDriftEvery)
	}

	// Preset default count applies when the run omits it.
	if configs[1].Count != 60 {
		t.Errorf("run 1 count = %d, want preset default 60", configs[1].Count)
	}

	if configs[2].Service != client.ServiceVQA {
		t.Errorf("run 2 service = %q, want vqa override", configs[2].Service)
	}
	if configs[2].Delay != 50*time.Millisecond {
		t.Errorf("run 2 delay = %v, want per-run 50ms", configs[2].Delay)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty runs",
			content: "version: 1\nruns: []\n",
			wantErr: "no runs",
		},
		{
			name:    "wrong version",
			content: "version: 2\nruns:\n  - scenario: baseline\n",
			wantErr: "unsupported version",
		},
		{
			name:    "unknown scenario",
			content: "version: 1\nruns:\n  - scenario: drift-everything\n",
			wantErr: "unknown scenario",
		},
		{
			name:    "unsupported service",
			content: "version: 1\nruns:\n  - scenario: drift-confidence\n    service: vqa\n",
			wantErr: "yolo",
		},
		{
			name:    "unknown service",
			content: "version: 1\nruns:\n  - scenario: baseline\n    service: bert\n",
			wantErr: "unknown service",
		},
		{
			name:    "unknown field",
			content: "version: 1\nruns:\n  - scenario: baseline\n    repeat: 5\n",
			wantErr: "field repeat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSuite(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSuite_DefaultServiceIsYOLO(t *testing.T) {
	path := writeSuite(t, "version: 1\nruns:\n  - scenario: baseline\n")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	configs, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if configs[0].Service != client.ServiceYOLO {
		t.Errorf("service = %q, want yolo", configs[0].Service)
	}
}
