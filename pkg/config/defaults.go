package config

import "time"

// Default values for configuration fields.
const (
	DefaultMode = ModeProduction

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultAdminPrefix     = "/_webdev"

	// CORS defaults
	DefaultCORSEnabled = false
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Compression defaults
	DefaultCompressionEnabled = true
	DefaultCompressionMinSize = 1024

	// Upstream defaults
	DefaultUpstreamURL                   = "http://127.0.0.1:3001"
	DefaultUpstreamResponseHeaderTimeout = 30 * time.Second
	DefaultUpstreamDialTimeout           = 10 * time.Second
	DefaultUpstreamMaxIdleConns          = 100
	DefaultUpstreamIdleConnTimeout       = 90 * time.Second
	DefaultUpstreamVia                   = "webdev"

	// Build defaults
	DefaultBuildOnDemand   = true
	DefaultBuildWorkingDir = "."
	DefaultBuildOutputEnv  = "WEBDEV_OUT_DIR"
	DefaultBuildTimeout    = 5 * time.Minute
	DefaultBuildTailLines  = 50

	// Assets defaults
	DefaultAssetsRoot   = "./dist"
	DefaultAssetsIndex  = "index.html"
	DefaultAssetsDigest = true

	// Dev server defaults
	DefaultDevServerPort         = 3000
	DefaultDevServerReadyTimeout = 30 * time.Second

	// Watch defaults
	DefaultWatchDebounce   = 200 * time.Millisecond
	DefaultWatchSkipHidden = true

	// Janitor defaults
	DefaultJanitorEnabled  = true
	DefaultJanitorSchedule = "*/15 * * * *"
	DefaultJanitorMaxAge   = time.Hour

	// History defaults
	DefaultHistoryEnabled     = true
	DefaultHistoryDriver      = "sqlite"
	DefaultHistoryPath        = ".webdev/history.db"
	DefaultHistoryBusyTimeout = 5 * time.Second
	DefaultHistoryRetain      = 200

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultLoggingRedact      = true
	DefaultMetricsEnabled     = true
	DefaultMetricsNamespace   = "webdev"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "webdev"
	DefaultOTLPInsecure       = true
	DefaultOTLPTimeout        = 10 * time.Second
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultWatchPaths is the watch.paths default.
var DefaultWatchPaths = []string{"src"}

// DefaultConfig returns a Config with every default applied, including the
// boolean switches that ApplyDefaults cannot tell apart from an explicit
// false. File values are decoded on top of it.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.CORS.Enabled = DefaultCORSEnabled
	cfg.Server.Compression.Enabled = DefaultCompressionEnabled
	cfg.Build.OnDemand = DefaultBuildOnDemand
	cfg.Assets.Digest = DefaultAssetsDigest
	cfg.Watch.SkipHidden = DefaultWatchSkipHidden
	cfg.Janitor.Enabled = DefaultJanitorEnabled
	cfg.History.Enabled = DefaultHistoryEnabled
	cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = DefaultOTLPInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.AdminPrefix == "" {
		cfg.Server.AdminPrefix = DefaultAdminPrefix
	}
	if cfg.Server.CORS.MaxAge == 0 {
		cfg.Server.CORS.MaxAge = DefaultCORSMaxAge
	}
	if cfg.Server.Compression.MinSize == 0 {
		cfg.Server.Compression.MinSize = DefaultCompressionMinSize
	}

	// Upstream defaults
	if cfg.Upstream.URL == "" {
		cfg.Upstream.URL = DefaultUpstreamURL
	}
	if cfg.Upstream.ResponseHeaderTimeout == 0 {
		cfg.Upstream.ResponseHeaderTimeout = DefaultUpstreamResponseHeaderTimeout
	}
	if cfg.Upstream.DialTimeout == 0 {
		cfg.Upstream.DialTimeout = DefaultUpstreamDialTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultUpstreamMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultUpstreamIdleConnTimeout
	}
	if cfg.Upstream.Via == "" {
		cfg.Upstream.Via = DefaultUpstreamVia
	}

	// Build defaults
	if cfg.Build.WorkingDir == "" {
		cfg.Build.WorkingDir = DefaultBuildWorkingDir
	}
	if cfg.Build.OutputEnv == "" {
		cfg.Build.OutputEnv = DefaultBuildOutputEnv
	}
	if cfg.Build.Timeout == 0 {
		cfg.Build.Timeout = DefaultBuildTimeout
	}
	if cfg.Build.TailLines == 0 {
		cfg.Build.TailLines = DefaultBuildTailLines
	}

	// Assets defaults
	if cfg.Assets.Root == "" {
		cfg.Assets.Root = DefaultAssetsRoot
	}
	if cfg.Assets.Index == "" {
		cfg.Assets.Index = DefaultAssetsIndex
	}

	// Dev server defaults
	if cfg.DevServer.Port == 0 {
		cfg.DevServer.Port = DefaultDevServerPort
	}
	if cfg.DevServer.ReadyTimeout == 0 {
		cfg.DevServer.ReadyTimeout = DefaultDevServerReadyTimeout
	}

	// Watch defaults
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = append([]string(nil), DefaultWatchPaths...)
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}

	// Janitor defaults
	if cfg.Janitor.Schedule == "" {
		cfg.Janitor.Schedule = DefaultJanitorSchedule
	}
	if cfg.Janitor.MaxAge == 0 {
		cfg.Janitor.MaxAge = DefaultJanitorMaxAge
	}

	// History defaults
	if cfg.History.Driver == "" {
		cfg.History.Driver = DefaultHistoryDriver
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.BusyTimeout == 0 {
		cfg.History.BusyTimeout = DefaultHistoryBusyTimeout
	}
	if cfg.History.Retain == 0 {
		cfg.History.Retain = DefaultHistoryRetain
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
