package observe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// TestConfigValidate covers the accept/reject matrix for Config.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		contain string
	}{
		{
			name: "fully valid",
			cfg: Config{
				ServiceName: "knowcache",
				Version:     "1.0.0",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
				Logging:     LoggingConfig{Enabled: true, Level: "info"},
			},
		},
		{
			name:    "missing service name",
			cfg:     Config{ServiceName: "", Version: "1.0.0"},
			wantErr: ErrMissingServiceName,
			contain: "service name",
		},
		{
			name: "unknown tracing exporter",
			cfg: Config{
				ServiceName: "knowcache",
				Tracing:     TracingConfig{Enabled: true, Exporter: "carrier-pigeon"},
			},
			wantErr: ErrInvalidTracingExporter,
			contain: "unknown tracing exporter",
		},
		{
			name: "unknown metrics exporter",
			cfg: Config{
				ServiceName: "knowcache",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "badvalue"},
			},
			wantErr: ErrInvalidMetricsExporter,
			contain: "unknown metrics exporter",
		},
		{
			name: "sample percentage too high",
			cfg: Config{
				ServiceName: "knowcache",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
			contain: "sample percentage",
		},
		{
			name: "sample percentage negative",
			cfg: Config{
				ServiceName: "knowcache",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: -0.1},
			},
			wantErr: ErrInvalidSamplePct,
			contain: "sample percentage",
		},
		{
			name: "unknown log level",
			cfg: Config{
				ServiceName: "knowcache",
				Logging:     LoggingConfig{Enabled: true, Level: "loud"},
			},
			wantErr: ErrInvalidLogLevel,
			contain: "unknown log level",
		},
		{
			name: "disabled subsystems skip exporter validation",
			cfg: Config{
				ServiceName: "knowcache",
				Tracing:     TracingConfig{Enabled: false, Exporter: "carrier-pigeon"},
				Metrics:     MetricsConfig{Enabled: false, Exporter: "badvalue"},
				Logging:     LoggingConfig{Enabled: false, Level: "loud"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tc.wantErr)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected errors.Is(%v), got: %v", tc.wantErr, err)
			}
			if tc.contain != "" && !strings.Contains(strings.ToLower(err.Error()), tc.contain) {
				t.Errorf("expected error to contain %q, got: %v", tc.contain, err)
			}
		})
	}
}

// TestNewObserver_DisabledNoop verifies that all-disabled config returns no-op observer.
func TestNewObserver_DisabledNoop(t *testing.T) {
	cfg := Config{
		ServiceName: "knowcache",
		Tracing:     TracingConfig{Enabled: false},
		Metrics:     MetricsConfig{Enabled: false},
		Logging:     LoggingConfig{Enabled: false},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil observer")
	}
	// No-op observer should still be usable
	if obs.Tracer() == nil {
		t.Error("expected non-nil tracer (noop)")
	}
	if obs.Meter() == nil {
		t.Error("expected non-nil meter (noop)")
	}
	if obs.Logger() == nil {
		t.Error("expected non-nil logger (noop)")
	}
}

// TestNewObserver_ReturnsTracerAndMeter verifies enabled config returns functional tracer/meter.
func TestNewObserver_ReturnsTracerAndMeter(t *testing.T) {
	cfg := Config{
		ServiceName: "knowcache",
		Version:     "1.0.0",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if obs.Tracer() == nil {
		t.Error("expected non-nil tracer")
	}
	if obs.Meter() == nil {
		t.Error("expected non-nil meter")
	}
}

// TestNewObserver_LoggerReturnsNonNil verifies logging enabled returns non-nil logger.
func TestNewObserver_LoggerReturnsNonNil(t *testing.T) {
	cfg := Config{
		ServiceName: "knowcache",
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if obs.Logger() == nil {
		t.Error("expected non-nil logger")
	}
}

// TestNewObserver_InvalidConfigReturnsError verifies that invalid config returns error.
func TestNewObserver_InvalidConfigReturnsError(t *testing.T) {
	cfg := Config{
		ServiceName: "", // Invalid
	}

	_, err := NewObserver(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for invalid config, got nil")
	}
}

// TestObserver_ShutdownGracefully verifies shutdown doesn't panic and is idempotent.
func TestObserver_ShutdownGracefully(t *testing.T) {
	cfg := Config{
		ServiceName: "knowcache",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no shutdown error, got: %v", err)
	}
}

// TestNopLogger_WritesNothing verifies the exported no-op logger is safe to use.
func TestNopLogger_WritesNothing(t *testing.T) {
	logger := NopLogger()
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	ctx := context.Background()
	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "dropped")
	logger.Error(ctx, "dropped")
	logger.Debug(ctx, "dropped")

	if logger.WithComponent("warmer") == nil {
		t.Error("WithComponent should return non-nil logger")
	}
}
