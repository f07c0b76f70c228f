package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
sources:
  - name: web-1
    host: web-1.example.com
    username: root
    ssh_key: /keys/web-1
    log_paths:
      - /var/log/nginx/access.log
      - /var/log/nginx/error.log
  - name: web-2
    host: web-2.example.com
    port: 2222
    username: deploy
    ssh_key: /keys/web-2
    log_paths:
      - /var/log/app.log
destination:
  host: logs.example.com
  username: collector
  ssh_key: /keys/dest
  base_path: /data/logs
interval: 300
state_path: /var/lib/log-transporter/state.db
log_level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].Port != 22 {
		t.Errorf("Sources[0].Port = %d, want default 22", cfg.Sources[0].Port)
	}
	if cfg.Sources[1].Port != 2222 {
		t.Errorf("Sources[1].Port = %d, want 2222", cfg.Sources[1].Port)
	}
	if cfg.Destination.Port != 22 {
		t.Errorf("Destination.Port = %d, want default 22", cfg.Destination.Port)
	}
	if cfg.Interval != 300 {
		t.Errorf("Interval = %d, want 300", cfg.Interval)
	}
	if cfg.IntervalDuration().Seconds() != 300 {
		t.Errorf("IntervalDuration() = %v, want 5m", cfg.IntervalDuration())
	}

	servers := cfg.SourceServers()
	if len(servers) != 2 || servers[0].Name != "web-1" || len(servers[0].LogPaths) != 2 {
		t.Errorf("SourceServers() = %+v", servers)
	}

	dest := cfg.DestServer()
	if dest.BasePath != "/data/logs" || dest.Host != "logs.example.com" {
		t.Errorf("DestServer() = %+v", dest)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	cfg := validConfig + "\nunknown_option: true\n"
	if _, err := Load(writeConfig(t, cfg)); err == nil {
		t.Error("Load() expected error for unknown field")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name: "no sources",
			mutate: func(c string) string {
				return "sources: []\n" + c[strings.Index(c, "destination:"):]
			},
			wantErr: "at least one source",
		},
		{
			name:    "missing source name",
			mutate:  func(c string) string { return strings.Replace(c, "name: web-1", "name: \"\"", 1) },
			wantErr: "name is required",
		},
		{
			name:    "duplicate source name",
			mutate:  func(c string) string { return strings.Replace(c, "name: web-2", "name: web-1", 1) },
			wantErr: "duplicate source name",
		},
		{
			name:    "missing source host",
			mutate:  func(c string) string { return strings.Replace(c, "host: web-1.example.com", "host: \"\"", 1) },
			wantErr: "host is required",
		},
		{
			name:    "missing destination base path",
			mutate:  func(c string) string { return strings.Replace(c, "base_path: /data/logs", "base_path: \"\"", 1) },
			wantErr: "base_path is required",
		},
		{
			name:    "negative interval",
			mutate:  func(c string) string { return strings.Replace(c, "interval: 300", "interval: -5", 1) },
			wantErr: "interval",
		},
		{
			name:    "audit enabled without host",
			mutate:  func(c string) string { return c + "\naudit:\n  enabled: true\n" },
			wantErr: "audit: host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.mutate(validConfig)))
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
