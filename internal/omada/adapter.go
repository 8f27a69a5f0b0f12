package omada

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// AuthResult is the normalized outcome of a controller authorization.
type AuthResult struct {
	GrantID string `json:"grant_id"`
	Status  string `json:"status"` // "active" when the controller confirmed, else "pending"
	MAC     string `json:"mac"`
}

// RevokeResult is the outcome of a controller revocation.
type RevokeResult struct {
	Success bool   `json:"success"`
	MAC     string `json:"mac"`
	Note    string `json:"note,omitempty"`
}

// StatusResult is the best-effort authorization status of a device.
type StatusResult struct {
	MAC              string `json:"mac"`
	Authorized       bool   `json:"authorized"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// externalPortalAuthType is the Omada authType for external portal
// authorization.
const externalPortalAuthType = 4

// Adapter translates grant lifecycle events into Omada hotspot API calls.
type Adapter struct {
	client *Client
	site   string
}

// NewAdapter creates an adapter bound to a controller site.
func NewAdapter(client *Client, site string) *Adapter {
	if site == "" {
		site = "Default"
	}
	return &Adapter{client: client, site: site}
}

// Authorize grants network access for a MAC until expiresAt. Bandwidth
// limits are kbps, 0 meaning unlimited. The expiry is expressed as
// microseconds since epoch on the wire.
func (a *Adapter) Authorize(ctx context.Context, mac string, expiresAt time.Time, upKbps, downKbps int) (AuthResult, error) {
	payload := map[string]any{
		"clientMac": mac,
		"site":      a.site,
		"time":      expiresAt.UnixMicro(),
		"authType":  externalPortalAuthType,
		"upKbps":    upKbps,
		"downKbps":  downKbps,
	}

	resp, err := a.client.PostWithRetry(ctx, "/extportal/auth", payload)
	if err != nil {
		return AuthResult{}, err
	}

	var result struct {
		ClientID   string `json:"clientId"`
		Authorized bool   `json:"authorized"`
	}
	if len(resp.Result) > 0 {
		// A missing or malformed result block means the controller accepted
		// the call but gave no confirmation; report the grant as pending.
		_ = json.Unmarshal(resp.Result, &result)
	}

	grantID := result.ClientID
	if grantID == "" {
		grantID = mac
	}
	status := "pending"
	if result.Authorized {
		status = "active"
	}

	return AuthResult{GrantID: grantID, Status: status, MAC: mac}, nil
}

// Revoke removes a device's authorization. A 404-equivalent response means
// the controller has already forgotten the device and is reported as
// success with a note rather than an error.
func (a *Adapter) Revoke(ctx context.Context, mac string, grantID string) (RevokeResult, error) {
	payload := map[string]any{
		"clientMac": mac,
		"site":      a.site,
	}

	_, err := a.client.PostWithRetry(ctx, "/extportal/revoke", payload)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			log.Debug().Str("mac", mac).Msg("revoke target already gone on controller")
			return RevokeResult{Success: true, MAC: mac, Note: "already revoked"}, nil
		}
		return RevokeResult{MAC: mac}, err
	}
	return RevokeResult{Success: true, MAC: mac}, nil
}

// Update pushes a new expiry for an already-authorized MAC. The controller
// has no dedicated update endpoint; re-authorization is idempotent on the
// controller side.
func (a *Adapter) Update(ctx context.Context, mac string, expiresAt time.Time, upKbps, downKbps int) (AuthResult, error) {
	return a.Authorize(ctx, mac, expiresAt, upKbps, downKbps)
}

// Status checks a device's authorization via the optional session endpoint.
// Not every controller version supports it, so any failure degrades to an
// unauthorized result instead of an error.
func (a *Adapter) Status(ctx context.Context, mac string) StatusResult {
	payload := map[string]any{
		"clientMac": mac,
		"site":      a.site,
	}

	resp, err := a.client.PostWithRetry(ctx, "/extportal/session", payload)
	if err != nil {
		return StatusResult{MAC: mac}
	}

	var result struct {
		Authorized    bool  `json:"authorized"`
		RemainingTime int64 `json:"remainingTime"`
	}
	if len(resp.Result) > 0 {
		_ = json.Unmarshal(resp.Result, &result)
	}
	return StatusResult{MAC: mac, Authorized: result.Authorized, RemainingSeconds: result.RemainingTime}
}
