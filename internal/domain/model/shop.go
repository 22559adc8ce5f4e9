package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionStatus reflects the last known state of a shop's remote browser link.
type ConnectionStatus string

const (
	// ConnectionStatusActive means the shop's browser session connected successfully.
	ConnectionStatusActive ConnectionStatus = "active"
	// ConnectionStatusInactive means the shop has been disabled by an operator.
	ConnectionStatusInactive ConnectionStatus = "inactive"
	// ConnectionStatusError means the last connection attempt failed.
	ConnectionStatusError ConnectionStatus = "error"
)

// Valid returns true if the ConnectionStatus is valid.
func (s ConnectionStatus) Valid() bool {
	return s == ConnectionStatusActive || s == ConnectionStatusInactive || s == ConnectionStatusError
}

// Shop is one storefront-console tenant the automation acts on.
type Shop struct {
	ID                string           `json:"id"                          db:"id"`
	DisplayName       string           `json:"display_name"                db:"display_name"`
	Platform          string           `json:"platform"                    db:"platform"`
	Site              string           `json:"site"                        db:"site"`
	ExternalBrowserID string           `json:"external_browser_id"         db:"external_browser_id"`
	ConnectionStatus  ConnectionStatus `json:"connection_status"           db:"connection_status"`
	LastConnectedAt   *time.Time       `json:"last_connected_at,omitempty" db:"last_connected_at"`
	CreatedAt         time.Time        `json:"created_at"                  db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"                  db:"updated_at"`
}

// CreateShopRequest represents a request to register a shop.
type CreateShopRequest struct {
	DisplayName       string `json:"display_name"`
	Platform          string `json:"platform"`
	Site              string `json:"site"`
	ExternalBrowserID string `json:"external_browser_id"`
}

// Validate validates the CreateShopRequest fields.
func (r *CreateShopRequest) Validate() error {
	if strings.TrimSpace(r.DisplayName) == "" {
		return errors.New("display_name is required")
	}
	if strings.TrimSpace(r.Site) == "" {
		return errors.New("site is required")
	}
	if strings.TrimSpace(r.ExternalBrowserID) == "" {
		return errors.New("external_browser_id is required")
	}
	return nil
}

// UpdateShopRequest carries the mutable shop fields. Nil fields are left unchanged.
type UpdateShopRequest struct {
	DisplayName      *string           `json:"display_name,omitempty"`
	Platform         *string           `json:"platform,omitempty"`
	Site             *string           `json:"site,omitempty"`
	ConnectionStatus *ConnectionStatus `json:"connection_status,omitempty"`
}

// Validate validates the UpdateShopRequest fields.
func (r *UpdateShopRequest) Validate() error {
	if r.ConnectionStatus != nil && !r.ConnectionStatus.Valid() {
		return fmt.Errorf("invalid connection_status: %q", *r.ConnectionStatus)
	}
	if r.DisplayName != nil && strings.TrimSpace(*r.DisplayName) == "" {
		return errors.New("display_name cannot be blank")
	}
	return nil
}
