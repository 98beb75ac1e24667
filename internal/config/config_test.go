package config

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/vango-dev/eventreduce/internal/errors"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func errorCode(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Engine.Scheduler != SchedulerImmediate {
		t.Errorf("Engine.Scheduler = %q, want %q", cfg.Engine.Scheduler, SchedulerImmediate)
	}
	if cfg.Engine.Equality != "reference" {
		t.Errorf("Engine.Equality = %q, want reference", cfg.Engine.Equality)
	}
	if cfg.Engine.MaxFlushRounds != reactive.DefaultMaxFlushRounds {
		t.Errorf("Engine.MaxFlushRounds = %d", cfg.Engine.MaxFlushRounds)
	}
	if cfg.Devtools.Port != DefaultPort || cfg.Devtools.Host != DefaultHost {
		t.Errorf("unexpected devtools address %s", cfg.DevtoolsAddress())
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("unexpected metrics config %+v", cfg.Metrics)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); errorCode(err) != "E141" {
		t.Errorf("expected E141 for missing config, got %v", err)
	}

	writeFile(t, filepath.Join(tmpDir, ConfigFileName), `engine:
  scheduler: batched
  equality: deep
  logLevel: debug
devtools:
  port: 9000
  pathPrefix: /_devtools
metrics:
  enabled: false
tracing:
  enabled: true
archive:
  bucket: sessions
  region: eu-west-1
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	want := &Config{
		Engine: EngineConfig{
			Scheduler:      SchedulerBatched,
			Equality:       "deep",
			MaxFlushRounds: reactive.DefaultMaxFlushRounds,
			LogLevel:       "debug",
			LogFormat:      "text",
		},
		Devtools: DevtoolsConfig{
			Host:       DefaultHost,
			Port:       9000,
			PathPrefix: "/_devtools",
			QueueSize:  DefaultQueueSize,
		},
		Metrics: MetricsConfig{Enabled: false, Namespace: DefaultNamespace},
		Tracing: TracingConfig{Enabled: true, TracerName: DefaultTracerName},
		Archive: ArchiveConfig{Bucket: "sessions", Region: "eu-west-1"},
	}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
	if cfg.DevtoolsURL() != "http://localhost:9000/_devtools" {
		t.Errorf("DevtoolsURL() = %q", cfg.DevtoolsURL())
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, JSONConfigFileName), `{
  "engine": {"equality": "deep"},
  "devtools": {"port": 8080}
}
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Engine.Equality != "deep" || cfg.Devtools.Port != 8080 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should default to enabled")
	}
}

func TestLoadPrefersYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ConfigFileName), "devtools:\n  port: 1111\n")
	writeFile(t, filepath.Join(tmpDir, JSONConfigFileName), `{"devtools": {"port": 2222}}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Devtools.Port != 1111 {
		t.Errorf("expected YAML config to win, got port %d", cfg.Devtools.Port)
	}
}

func TestLoadParseErrorLocation(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		line    int
	}{
		{"yaml", ConfigFileName, "engine:\n\tscheduler: batched\n", 2},
		{"json syntax", JSONConfigFileName, "{\n  \"engine\": {\n    \"scheduler\": batched\n  }\n}\n", 3},
		{"json type", JSONConfigFileName, "{\n  \"devtools\": {\n    \"port\": \"high\"\n  }\n}\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			_, err := LoadFile(path)
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Code != "E120" {
				t.Fatalf("expected E120, got %v", err)
			}
			if e.Location == nil || e.Location.Line != tt.line {
				t.Errorf("expected location line %d, got %+v", tt.line, e.Location)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"scheduler", func(c *Config) { c.Engine.Scheduler = "eager" }, "E123"},
		{"equality", func(c *Config) { c.Engine.Equality = "shallow" }, "E123"},
		{"log level", func(c *Config) { c.Engine.LogLevel = "loud" }, "E123"},
		{"log format", func(c *Config) { c.Engine.LogFormat = "xml" }, "E123"},
		{"rounds", func(c *Config) { c.Engine.MaxFlushRounds = -1 }, "E123"},
		{"port", func(c *Config) { c.Devtools.Port = 70000 }, "E122"},
		{"prefix", func(c *Config) { c.Devtools.PathPrefix = "devtools" }, "E123"},
		{"archive", func(c *Config) { c.Archive.Bucket, c.Archive.Dir = "b", "d" }, "E123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if got := errorCode(cfg.Validate()); got != tt.code {
				t.Errorf("Validate() code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestLoadFileValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	writeFile(t, path, "devtools:\n  port: 70000\n")

	if _, err := LoadFile(path); errorCode(err) != "E122" {
		t.Errorf("expected E122, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{ConfigFileName, JSONConfigFileName} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := New()
			cfg.Engine.Scheduler = SchedulerBatched
			cfg.Archive.Dir = "recordings"
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo: %v", err)
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if diff := cmp.Diff(cfg, loaded, cmpopts.IgnoreUnexported(Config{})); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			if loaded.ArchiveDir() != filepath.Join(filepath.Dir(path), "recordings") {
				t.Errorf("ArchiveDir() = %q", loaded.ArchiveDir())
			}

			loaded.Devtools.Port = 4000
			if err := loaded.Save(); err != nil {
				t.Fatalf("Save: %v", err)
			}
			again, err := LoadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if again.Devtools.Port != 4000 {
				t.Errorf("expected saved port 4000, got %d", again.Devtools.Port)
			}
		})
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Error("expected error when saving without a path")
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindProjectRoot(nested); errorCode(err) != "E141" {
		t.Errorf("expected E141, got %v", err)
	}

	writeFile(t, filepath.Join(root, ConfigFileName), "engine: {}\n")

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindProjectRoot() = %q, want %q", got, want)
	}
	if !Exists(root) || Exists(nested) {
		t.Error("Exists reported the wrong directories")
	}
}

func TestApply(t *testing.T) {
	cfg := New()
	cfg.Engine.Scheduler = SchedulerBatched
	cfg.Engine.Equality = "deep"
	cfg.Engine.MaxFlushRounds = 7
	cfg.Engine.LogLevel = "debug"
	cfg.Engine.LogFormat = "json"

	var buf bytes.Buffer
	restore, err := cfg.Apply(&buf)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	s, ok := reactive.CurrentScheduler().(*reactive.DeferredScheduler)
	if !ok {
		restore()
		t.Fatalf("expected DeferredScheduler, got %T", reactive.CurrentScheduler())
	}
	if s.MaxFlushRounds != 7 {
		t.Errorf("MaxFlushRounds = %d, want 7", s.MaxFlushRounds)
	}
	if reactive.CurrentEqualityPolicy() != reactive.StructuralEquality {
		t.Error("expected structural equality")
	}
	if !reactive.Logger().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug logging")
	}

	v := reactive.NewValue(1)
	d := reactive.Derive(func() int { return v.Get() + 1 }, "applied")
	d.Get()
	if !strings.Contains(buf.String(), `"label":"applied"`) {
		t.Errorf("expected JSON engine logs, got %q", buf.String())
	}

	restore()
	if _, ok := reactive.CurrentScheduler().(*reactive.ImmediateScheduler); !ok {
		t.Errorf("expected scheduler restored, got %T", reactive.CurrentScheduler())
	}
	if reactive.CurrentEqualityPolicy() != reactive.ReferenceEquality {
		t.Error("expected equality policy restored")
	}
}

func TestApplyInvalid(t *testing.T) {
	cfg := New()
	cfg.Engine.Scheduler = "eager"
	if _, err := cfg.Apply(&bytes.Buffer{}); err == nil {
		t.Error("expected Apply to reject an invalid config")
	}
}
