package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/eventreduce/internal/errors"
	"github.com/vango-dev/eventreduce/pkg/reactive"
)

const (
	// ConfigFileName is the name of the YAML configuration file.
	ConfigFileName = "eventreduce.yaml"

	// JSONConfigFileName is the name of the JSON configuration file.
	JSONConfigFileName = "eventreduce.json"

	// DefaultPort is the default devtools server port.
	DefaultPort = 7331

	// DefaultHost is the default devtools server host.
	DefaultHost = "localhost"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "eventreduce"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "github.com/vango-dev/eventreduce"

	// DefaultQueueSize is the default devtools dispatch queue capacity.
	DefaultQueueSize = 256
)

// Scheduler names.
const (
	SchedulerImmediate = "immediate"
	SchedulerBatched   = "batched"
)

// Config represents the complete eventreduce configuration.
type Config struct {
	// Engine contains reactive engine settings.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Devtools contains devtools server settings.
	Devtools DevtoolsConfig `json:"devtools" yaml:"devtools"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Archive contains session archive settings.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// EngineConfig contains reactive engine settings.
type EngineConfig struct {
	// Scheduler is "immediate" (default) or "batched".
	Scheduler string `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`

	// Equality is the default equality policy: "reference" (default) or
	// "deep".
	Equality string `json:"equality,omitempty" yaml:"equality,omitempty"`

	// MaxFlushRounds bounds a scheduler flush (default: 100).
	MaxFlushRounds int `json:"maxFlushRounds,omitempty" yaml:"maxFlushRounds,omitempty"`

	// LogLevel is one of debug, info, warn, error (default: info).
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// LogFormat is "text" (default) or "json".
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
}

// DevtoolsConfig contains devtools server settings.
type DevtoolsConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// PathPrefix mounts every route under a prefix.
	PathPrefix string `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`

	// QueueSize is the capacity of the engine dispatch queue.
	QueueSize int `json:"queueSize,omitempty" yaml:"queueSize,omitempty"`

	// MaxChanges bounds the recorded session.
	MaxChanges int `json:"maxChanges,omitempty" yaml:"maxChanges,omitempty"`

	// AllowedOrigins lists websocket origins accepted in addition to the
	// same origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled installs the metrics hooks and serves /metrics.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace is the metric namespace (default: "eventreduce").
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// Subsystem is the metric subsystem.
	Subsystem string `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled installs the tracing hooks.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TracerName is the instrumentation scope name.
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`

	// IncludeValues records cell values as span attributes.
	IncludeValues bool `json:"includeValues,omitempty" yaml:"includeValues,omitempty"`
}

// ArchiveConfig contains session archive settings. Either Bucket or Dir
// must be set to archive recordings.
type ArchiveConfig struct {
	// Bucket is the S3 bucket receiving recordings.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Region is the AWS region of the bucket.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Dir stores recordings on the local filesystem instead of S3.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Prefix is prepended to every archived key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{
		Metrics: MetricsConfig{Enabled: true},
	}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory. It looks for
// eventreduce.yaml first, then eventreduce.json.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, JSONConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E141").
		WithDetail("No " + ConfigFileName + " or " + JSONConfigFileName + " found in " + dir).
		WithSuggestion("Run 'eventreduce init' to create one")
}

// LoadFile reads configuration from the specified file path. Files ending
// in .json are parsed as JSON, everything else as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No config file found at " + path).
				WithSuggestion("Run 'eventreduce init' to create one")
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	if err := decode(path, data, cfg); err != nil {
		e := errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path)).
			Wrap(err)
		if line := errorLine(data, err); line > 0 {
			e.WithLocation(path, line, 0)
		}
		return nil, e
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func decode(path string, data []byte, cfg *Config) error {
	if isJSON(path) {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// errorLine returns the 1-based line a parse error refers to, or 0.
func errorLine(data []byte, err error) int {
	var syntax *json.SyntaxError
	if stderrors.As(err, &syntax) {
		return 1 + strings.Count(string(data[:min(int(syntax.Offset), len(data))]), "\n")
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return 1 + strings.Count(string(data[:min(int(typeErr.Offset), len(data))]), "\n")
	}
	if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as JSON for .json
// files and YAML otherwise.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(c, "", "  ")
		// Add newline at end of file
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Engine
	if c.Engine.Scheduler == "" {
		c.Engine.Scheduler = SchedulerImmediate
	}
	if c.Engine.Equality == "" {
		c.Engine.Equality = reactive.ReferenceEquality.String()
	}
	if c.Engine.MaxFlushRounds == 0 {
		c.Engine.MaxFlushRounds = reactive.DefaultMaxFlushRounds
	}
	if c.Engine.LogLevel == "" {
		c.Engine.LogLevel = "info"
	}
	if c.Engine.LogFormat == "" {
		c.Engine.LogFormat = "text"
	}

	// Devtools
	if c.Devtools.Host == "" {
		c.Devtools.Host = DefaultHost
	}
	if c.Devtools.Port == 0 {
		c.Devtools.Port = DefaultPort
	}
	if c.Devtools.QueueSize == 0 {
		c.Devtools.QueueSize = DefaultQueueSize
	}

	// Metrics
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	// Tracing
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Engine.Scheduler {
	case SchedulerImmediate, SchedulerBatched:
	default:
		return invalid("engine.scheduler", c.Engine.Scheduler, SchedulerImmediate, SchedulerBatched)
	}
	if _, err := c.EqualityPolicy(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Engine.LogFormat {
	case "text", "json":
	default:
		return invalid("engine.logFormat", c.Engine.LogFormat, "text", "json")
	}
	if c.Engine.MaxFlushRounds < 0 {
		return errors.New("E123").
			WithDetail("engine.maxFlushRounds must not be negative")
	}
	if c.Devtools.Port < 1 || c.Devtools.Port > 65535 {
		return errors.New("E122").
			WithDetail(fmt.Sprintf("devtools.port is %d; it must be between 1 and 65535", c.Devtools.Port))
	}
	if c.Devtools.PathPrefix != "" && !strings.HasPrefix(c.Devtools.PathPrefix, "/") {
		return errors.New("E123").
			WithDetail("devtools.pathPrefix must start with '/'")
	}
	if c.Archive.Bucket != "" && c.Archive.Dir != "" {
		return errors.New("E123").
			WithDetail("archive.bucket and archive.dir are mutually exclusive")
	}
	return nil
}

func invalid(field, value string, allowed ...string) error {
	return errors.New("E123").
		WithDetail(fmt.Sprintf("%s is %q", field, value)).
		WithSuggestion("Use one of: " + strings.Join(allowed, ", "))
}

// EqualityPolicy returns the configured default equality policy.
func (c *Config) EqualityPolicy() (reactive.EqualityPolicy, error) {
	switch c.Engine.Equality {
	case "", reactive.ReferenceEquality.String():
		return reactive.ReferenceEquality, nil
	case reactive.StructuralEquality.String():
		return reactive.StructuralEquality, nil
	}
	return 0, invalid("engine.equality", c.Engine.Equality,
		reactive.ReferenceEquality.String(), reactive.StructuralEquality.String())
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Engine.LogLevel)); err != nil {
		return 0, invalid("engine.logLevel", c.Engine.LogLevel, "debug", "info", "warn", "error")
	}
	return level, nil
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Engine.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Scheduler builds the configured reaction scheduler.
func (c *Config) Scheduler() reactive.Scheduler {
	if c.Engine.Scheduler == SchedulerBatched {
		s := reactive.NewDeferredScheduler()
		s.MaxFlushRounds = c.Engine.MaxFlushRounds
		return s
	}
	s := reactive.NewImmediateScheduler()
	s.MaxFlushRounds = c.Engine.MaxFlushRounds
	return s
}

// Apply installs the configured scheduler, equality policy and logger into
// the engine. The returned function restores the previous settings.
func (c *Config) Apply(logOutput io.Writer) (restore func(), err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	policy, _ := c.EqualityPolicy()

	prevLogger := reactive.Logger()
	restoreScheduler := reactive.SetScheduler(c.Scheduler())
	restorePolicy := reactive.SetEqualityPolicy(policy)
	reactive.SetLogger(c.Logger(logOutput))

	return func() {
		reactive.SetLogger(prevLogger)
		restorePolicy()
		restoreScheduler()
	}, nil
}

// DevtoolsAddress returns the address string for the devtools server.
func (c *Config) DevtoolsAddress() string {
	return c.Devtools.Host + ":" + strconv.Itoa(c.Devtools.Port)
}

// DevtoolsURL returns the base URL of the devtools server.
func (c *Config) DevtoolsURL() string {
	return "http://" + c.DevtoolsAddress() + strings.TrimSuffix(c.Devtools.PathPrefix, "/")
}

// ArchiveDir returns the absolute path of the local archive directory.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir == "" || filepath.IsAbs(c.Archive.Dir) {
		return c.Archive.Dir
	}
	return filepath.Join(c.Dir(), c.Archive.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, JSONConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory containing a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E141").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'eventreduce init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its closest parent holding a config file.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
