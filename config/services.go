package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeDispatcher runs the task dispatcher worker.
	ServiceModeDispatcher ServiceMode = "dispatcher"
	// ServiceModeReaper runs the task reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeDispatcher,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeDispatcher, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: dispatcher, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DispatcherConfig contains task dispatcher service configuration.
type DispatcherConfig struct {
	// PollInterval is the fallback claim interval used when no queue
	// notification arrives. Notifications normally wake the worker sooner.
	PollInterval time.Duration `env:"DISPATCHER_POLL_INTERVAL" envDefault:"10s"`

	// TaskPause is the pause between consecutive tasks on the same worker.
	// Sellers throttle rapid automated edits, so back-to-back execution is
	// deliberately spaced out.
	TaskPause time.Duration `env:"DISPATCHER_TASK_PAUSE" envDefault:"1s"`

	// ErrorBackoff is the wait after an infrastructure-level claim or
	// execution error before the worker tries again.
	ErrorBackoff time.Duration `env:"DISPATCHER_ERROR_BACKOFF" envDefault:"5s"`

	// HeartbeatInterval is how often the worker publishes its status to Redis.
	HeartbeatInterval time.Duration `env:"DISPATCHER_HEARTBEAT_INTERVAL" envDefault:"15s"`

	// HeartbeatTTL is the expiry on worker status keys. Workers that stop
	// heartbeating disappear from the registry after this long.
	HeartbeatTTL time.Duration `env:"DISPATCHER_HEARTBEAT_TTL" envDefault:"60s"`

	// WorkerID identifies this worker in logs and the status registry.
	// Defaults to the hostname when empty.
	WorkerID string `env:"DISPATCHER_WORKER_ID" envDefault:""`
}

// Sanitize applies guardrails to dispatcher configuration values.
func (d *DispatcherConfig) Sanitize() {
	if d.PollInterval < 1*time.Second {
		d.PollInterval = 1 * time.Second
	}
	if d.TaskPause < 0 {
		d.TaskPause = 0
	}
	if d.ErrorBackoff < 1*time.Second {
		d.ErrorBackoff = 1 * time.Second
	}
	if d.HeartbeatInterval < 1*time.Second {
		d.HeartbeatInterval = 1 * time.Second
	}
	// TTL must outlive the interval or healthy workers flap in and out of
	// the registry.
	if d.HeartbeatTTL < 2*d.HeartbeatInterval {
		d.HeartbeatTTL = 2 * d.HeartbeatInterval
	}
	d.WorkerID = strings.TrimSpace(d.WorkerID)
}

// ReaperConfig contains task reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// RunningMaxAge is the maximum age for running tasks before they are marked as failed.
	// Tasks stuck in running status longer than this (dead worker, hung browser)
	// will be failed so operators can retry them.
	RunningMaxAge time.Duration `env:"REAPER_RUNNING_MAX_AGE" envDefault:"30m"`

	// SuccessMaxAge is the maximum age for successful tasks before deletion.
	SuccessMaxAge time.Duration `env:"REAPER_SUCCESS_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed tasks before deletion.
	// Failed tasks are kept longer because operators review them.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"336h"` // 14 days

	// CancelledMaxAge is the maximum age for cancelled tasks before deletion.
	CancelledMaxAge time.Duration `env:"REAPER_CANCELLED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.RunningMaxAge < 5*time.Minute {
		r.RunningMaxAge = 5 * time.Minute
	}
	if r.SuccessMaxAge < 1*time.Hour {
		r.SuccessMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.CancelledMaxAge < 1*time.Hour {
		r.CancelledMaxAge = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
