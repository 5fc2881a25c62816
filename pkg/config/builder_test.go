package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts from a valid production configuration.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a ConfigBuilder whose Build result passes Validate.
func NewTestConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: MinimalConfig()}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) WithMode(mode string) *ConfigBuilder {
	b.cfg.Mode = mode
	return b
}

func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

func (b *ConfigBuilder) WithUpstream(url string) *ConfigBuilder {
	b.cfg.Upstream.URL = url
	return b
}

func (b *ConfigBuilder) WithBuildCommand(cmd string) *ConfigBuilder {
	b.cfg.Build.Command = cmd
	return b
}

func (b *ConfigBuilder) WithBuildTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Build.Timeout = d
	return b
}

func (b *ConfigBuilder) WithDevServer(cmd string, port int) *ConfigBuilder {
	b.cfg.DevServer.Command = cmd
	b.cfg.DevServer.Port = port
	return b
}

func (b *ConfigBuilder) WithJanitorSchedule(schedule string) *ConfigBuilder {
	b.cfg.Janitor.Schedule = schedule
	return b
}

func (b *ConfigBuilder) WithHistoryDriver(driver string) *ConfigBuilder {
	b.cfg.History.Driver = driver
	return b
}

func (b *ConfigBuilder) WithLogging(level, format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	b.cfg.Telemetry.Logging.Format = format
	return b
}

// MinimalConfig returns the smallest valid configuration.
func MinimalConfig() *Config {
	cfg := DefaultConfig()
	cfg.Build.Command = "npm run build"
	return cfg
}
