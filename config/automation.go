package config

import (
	"strings"
	"time"
)

// ProvisionerConfig contains browser-farm provisioning API configuration.
type ProvisionerConfig struct {
	// BaseURL is the root of the vendor provisioning API.
	BaseURL string `env:"PROVISIONER_BASE_URL" envDefault:"http://127.0.0.1:19995"`

	// Company, Username, and Password authenticate against the vendor API.
	Company  string `env:"PROVISIONER_COMPANY"`
	Username string `env:"PROVISIONER_USERNAME"`
	Password string `env:"PROVISIONER_PASSWORD"`

	// Timeout bounds each provisioning API call. Profile launches are slow,
	// so this is well above a normal HTTP timeout.
	Timeout time.Duration `env:"PROVISIONER_TIMEOUT" envDefault:"60s"`
}

// Sanitize applies guardrails to provisioner configuration values.
func (p *ProvisionerConfig) Sanitize() {
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.Company = strings.TrimSpace(p.Company)
	p.Username = strings.TrimSpace(p.Username)
	if p.Timeout < 5*time.Second {
		p.Timeout = 5 * time.Second
	}
}

// SessionConfig contains remote browser session configuration.
type SessionConfig struct {
	// NavigateTimeout bounds page navigation.
	NavigateTimeout time.Duration `env:"SESSION_NAVIGATE_TIMEOUT" envDefault:"30s"`

	// ElementTimeout bounds element lookup and interaction.
	ElementTimeout time.Duration `env:"SESSION_ELEMENT_TIMEOUT" envDefault:"5s"`

	// SettleTimeout bounds the post-navigation settle wait.
	SettleTimeout time.Duration `env:"SESSION_SETTLE_TIMEOUT" envDefault:"2s"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.NavigateTimeout < 1*time.Second {
		s.NavigateTimeout = 1 * time.Second
	}
	if s.ElementTimeout < 1*time.Second {
		s.ElementTimeout = 1 * time.Second
	}
	if s.SettleTimeout < 0 {
		s.SettleTimeout = 0
	}
}

// LocatorConfig contains locator catalog configuration.
type LocatorConfig struct {
	// Path points at a JSON catalog that overrides the built-in locators.
	// Empty means the built-in catalog is used as-is.
	Path string `env:"LOCATOR_CATALOG_PATH" envDefault:""`
}

// Sanitize applies guardrails to locator configuration values.
func (l *LocatorConfig) Sanitize() {
	l.Path = strings.TrimSpace(l.Path)
}

// EvidenceConfig contains evidence screenshot configuration.
type EvidenceConfig struct {
	// Dir is the directory screenshots are written to.
	Dir string `env:"EVIDENCE_DIR" envDefault:"./evidence"`
}

// Sanitize applies guardrails to evidence configuration values.
func (e *EvidenceConfig) Sanitize() {
	e.Dir = strings.TrimSpace(e.Dir)
	if e.Dir == "" {
		e.Dir = "./evidence"
	}
}
