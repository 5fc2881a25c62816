package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"mode", cfg.Mode, ModeProduction},
		{"listen address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"write timeout", cfg.Server.WriteTimeout, time.Duration(0)},
		{"admin prefix", cfg.Server.AdminPrefix, "/_webdev"},
		{"compression", cfg.Server.Compression.Enabled, true},
		{"upstream", cfg.Upstream.URL, "http://127.0.0.1:3001"},
		{"via", cfg.Upstream.Via, "webdev"},
		{"on demand", cfg.Build.OnDemand, true},
		{"on startup", cfg.Build.OnStartup, false},
		{"output env", cfg.Build.OutputEnv, "WEBDEV_OUT_DIR"},
		{"build timeout", cfg.Build.Timeout, 5 * time.Minute},
		{"assets root", cfg.Assets.Root, "./dist"},
		{"index", cfg.Assets.Index, "index.html"},
		{"digest", cfg.Assets.Digest, true},
		{"dev port", cfg.DevServer.Port, 3000},
		{"watch enabled", cfg.Watch.Enabled, false},
		{"skip hidden", cfg.Watch.SkipHidden, true},
		{"janitor schedule", cfg.Janitor.Schedule, "*/15 * * * *"},
		{"history driver", cfg.History.Driver, "sqlite"},
		{"history retain", cfg.History.Retain, 200},
		{"log level", cfg.Telemetry.Logging.Level, "info"},
		{"redact", cfg.Telemetry.Logging.Redact, true},
		{"metrics", cfg.Telemetry.Metrics.Enabled, true},
		{"namespace", cfg.Telemetry.Metrics.Namespace, "webdev"},
		{"tracing", cfg.Telemetry.Tracing.Enabled, false},
		{"otlp insecure", cfg.Telemetry.Tracing.OTLP.Insecure, true},
		{"check timeout", cfg.Telemetry.Health.CheckTimeout, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{ListenAddress: ":9000", ReadTimeout: time.Second},
		Upstream: UpstreamConfig{URL: "http://app:4000"},
		Assets:   AssetsConfig{Root: "public"},
		Watch:    WatchConfig{Paths: []string{"app", "lib"}},
	}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != ":9000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Upstream.URL != "http://app:4000" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
	if cfg.Assets.Root != "public" {
		t.Errorf("Assets.Root = %q", cfg.Assets.Root)
	}
	if len(cfg.Watch.Paths) != 2 {
		t.Errorf("Watch.Paths = %v", cfg.Watch.Paths)
	}
	if cfg.Server.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want default", cfg.Server.IdleTimeout)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	ApplyDefaults(b)
	ApplyDefaults(b)

	if a.Upstream != b.Upstream {
		t.Errorf("upstream section changed on repeated ApplyDefaults")
	}
	if a.Telemetry.Tracing != b.Telemetry.Tracing {
		t.Errorf("tracing section changed on repeated ApplyDefaults")
	}
}

func TestDefaultWatchPathsNotShared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Paths[0] = "changed"
	if DefaultWatchPaths[0] != "src" {
		t.Fatalf("DefaultWatchPaths mutated through a Config: %v", DefaultWatchPaths)
	}
}

func TestUpstreamURL(t *testing.T) {
	t.Run("production uses upstream.url", func(t *testing.T) {
		cfg := NewTestConfig().WithUpstream("https://app.internal:8443").Build()
		if got := cfg.UpstreamURL(); got != "https://app.internal:8443" {
			t.Errorf("UpstreamURL() = %q", got)
		}
	})

	t.Run("development uses the dev server port", func(t *testing.T) {
		cfg := NewTestConfig().WithMode(ModeDevelopment).WithDevServer("vite", 5173).Build()
		if !cfg.IsDevelopment() {
			t.Fatal("IsDevelopment() = false")
		}
		if got := cfg.UpstreamURL(); got != "http://localhost:5173" {
			t.Errorf("UpstreamURL() = %q", got)
		}
	})
}
