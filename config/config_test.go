package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - dispatcher",
			input: "dispatcher",
			expected: map[ServiceMode]bool{
				ServiceModeDispatcher: true,
			},
			expectError: false,
		},
		{
			name:  "single service - reaper",
			input: "reaper",
			expected: map[ServiceMode]bool{
				ServiceModeReaper: true,
			},
			expectError: false,
		},
		{
			name:  "all services",
			input: "dispatcher,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeDispatcher: true,
				ServiceModeReaper:     true,
			},
			expectError: false,
		},
		{
			name:  "services with spaces",
			input: " dispatcher , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeDispatcher: true,
				ServiceModeReaper:     true,
			},
			expectError: false,
		},
		{
			name:  "duplicate services",
			input: "dispatcher,dispatcher,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeDispatcher: true,
				ServiceModeReaper:     true,
			},
			expectError: false,
		},
		{
			name:        "empty string",
			input:       "",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expected:    nil,
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "dispatcher,invalid-service",
			expected:    nil,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name         string
		services     string
		dispatcherOn bool
		reaperOn     bool
	}{
		{
			name:         "dispatcher only",
			services:     "dispatcher",
			dispatcherOn: true,
			reaperOn:     false,
		},
		{
			name:         "reaper only",
			services:     "reaper",
			dispatcherOn: false,
			reaperOn:     true,
		},
		{
			name:         "both services",
			services:     "dispatcher,reaper",
			dispatcherOn: true,
			reaperOn:     true,
		},
		{
			name:         "invalid configuration disables everything",
			services:     "invalid-service",
			dispatcherOn: false,
			reaperOn:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if got := cfg.IsDispatcherEnabled(); got != tt.dispatcherOn {
				t.Errorf("IsDispatcherEnabled() = %v, want %v", got, tt.dispatcherOn)
			}
			if got := cfg.IsReaperEnabled(); got != tt.reaperOn {
				t.Errorf("IsReaperEnabled() = %v, want %v", got, tt.reaperOn)
			}
		})
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("SERVICES", "dispatcher,reaper")
	t.Setenv("PROVISIONER_BASE_URL", "http://farm.internal:19995/")
	t.Setenv("PROVISIONER_COMPANY", "acme")
	t.Setenv("DISPATCHER_POLL_INTERVAL", "30s")
	t.Setenv("REAPER_RUNNING_MAX_AGE", "45m")
	t.Setenv("EVIDENCE_DIR", "/var/lib/execd/evidence")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse failed: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("Postgres.Host = %q, want %q", cfg.Postgres.Host, "db.internal")
	}
	if cfg.Postgres.Port != 5433 {
		t.Errorf("Postgres.Port = %d, want 5433", cfg.Postgres.Port)
	}
	if !cfg.IsDispatcherEnabled() || !cfg.IsReaperEnabled() {
		t.Errorf("expected both services enabled, got %q", cfg.Services)
	}
	if cfg.Provisioner.BaseURL != "http://farm.internal:19995" {
		t.Errorf("Provisioner.BaseURL = %q, want trailing slash stripped", cfg.Provisioner.BaseURL)
	}
	if cfg.Provisioner.Company != "acme" {
		t.Errorf("Provisioner.Company = %q, want %q", cfg.Provisioner.Company, "acme")
	}
	if cfg.Dispatcher.PollInterval != 30*time.Second {
		t.Errorf("Dispatcher.PollInterval = %v, want 30s", cfg.Dispatcher.PollInterval)
	}
	if cfg.Reaper.RunningMaxAge != 45*time.Minute {
		t.Errorf("Reaper.RunningMaxAge = %v, want 45m", cfg.Reaper.RunningMaxAge)
	}
	if cfg.Evidence.Dir != "/var/lib/execd/evidence" {
		t.Errorf("Evidence.Dir = %q, want %q", cfg.Evidence.Dir, "/var/lib/execd/evidence")
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("env.Parse failed: %v", err)
	}
	cfg.Sanitize()

	if cfg.Services != "dispatcher" {
		t.Errorf("Services default = %q, want %q", cfg.Services, "dispatcher")
	}
	if cfg.Reaper.Interval != 5*time.Minute {
		t.Errorf("Reaper.Interval default = %v, want 5m", cfg.Reaper.Interval)
	}
	if cfg.Session.NavigateTimeout != 30*time.Second {
		t.Errorf("Session.NavigateTimeout default = %v, want 30s", cfg.Session.NavigateTimeout)
	}
	if cfg.Evidence.Dir != "./evidence" {
		t.Errorf("Evidence.Dir default = %q, want %q", cfg.Evidence.Dir, "./evidence")
	}
}

func TestDispatcherConfig_Sanitize(t *testing.T) {
	d := DispatcherConfig{
		PollInterval:      10 * time.Millisecond,
		TaskPause:         -1 * time.Second,
		ErrorBackoff:      0,
		HeartbeatInterval: 20 * time.Second,
		HeartbeatTTL:      5 * time.Second,
		WorkerID:          "  worker-1  ",
	}
	d.Sanitize()

	if d.PollInterval != 1*time.Second {
		t.Errorf("PollInterval = %v, want 1s floor", d.PollInterval)
	}
	if d.TaskPause != 0 {
		t.Errorf("TaskPause = %v, want 0 floor", d.TaskPause)
	}
	if d.ErrorBackoff != 1*time.Second {
		t.Errorf("ErrorBackoff = %v, want 1s floor", d.ErrorBackoff)
	}
	if d.HeartbeatTTL != 40*time.Second {
		t.Errorf("HeartbeatTTL = %v, want 2x heartbeat interval", d.HeartbeatTTL)
	}
	if d.WorkerID != "worker-1" {
		t.Errorf("WorkerID = %q, want trimmed", d.WorkerID)
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	r := ReaperConfig{
		Interval:        1 * time.Second,
		RunningMaxAge:   1 * time.Minute,
		SuccessMaxAge:   1 * time.Minute,
		FailedMaxAge:    1 * time.Minute,
		CancelledMaxAge: 1 * time.Minute,
		BatchSize:       50000,
	}
	r.Sanitize()

	if r.Interval != 1*time.Minute {
		t.Errorf("Interval = %v, want 1m floor", r.Interval)
	}
	if r.RunningMaxAge != 5*time.Minute {
		t.Errorf("RunningMaxAge = %v, want 5m floor", r.RunningMaxAge)
	}
	if r.SuccessMaxAge != 1*time.Hour {
		t.Errorf("SuccessMaxAge = %v, want 1h floor", r.SuccessMaxAge)
	}
	if r.BatchSize != 10000 {
		t.Errorf("BatchSize = %d, want 10000 ceiling", r.BatchSize)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	c := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	c.Sanitize()
	if c.Enabled {
		t.Error("expected metrics disabled when statsd address is blank")
	}
	if c.IsEnabled() {
		t.Error("IsEnabled() should be false after sanitize")
	}

	c = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "statsd:8125"}
	c.Sanitize()
	if !c.IsEnabled() {
		t.Error("IsEnabled() should be true with address set")
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	c := ObservabilityNotificationsConfig{
		Enabled: true,
		Slack:   SlackNotificationConfig{Enabled: true, WebhookURL: ""},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "rk-123",
		},
	}
	c.Sanitize()

	if c.Slack.Enabled {
		t.Error("Slack should be disabled without a webhook URL")
	}
	if !c.PagerDuty.Enabled {
		t.Error("PagerDuty should stay enabled with a routing key")
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s default", c.Timeout)
	}

	c.Enabled = false
	c.Sanitize()
	if c.PagerDuty.Enabled {
		t.Error("disabling notifications should disable all channels")
	}
}
