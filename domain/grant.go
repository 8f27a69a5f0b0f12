package domain

import "time"

// GrantStatus represents the lifecycle status of an access grant.
type GrantStatus string

const (
	GrantStatusPending GrantStatus = "pending"
	GrantStatusActive  GrantStatus = "active"
	GrantStatusExpired GrantStatus = "expired"
	GrantStatusRevoked GrantStatus = "revoked"
)

// GrantOrigin identifies what produced a grant. At least one of VoucherCode,
// BookingRef or SessionToken must be set.
type GrantOrigin struct {
	VoucherCode   string
	BookingRef    string
	SessionToken  string
	IntegrationID string
	UserInputCode string
	UpKbps        int
	DownKbps      int
}

// Empty reports whether no origin field is set.
func (o GrantOrigin) Empty() bool {
	return o.VoucherCode == "" && o.BookingRef == "" && o.SessionToken == ""
}

// AccessGrant is a time-bounded network authorization tied to a device MAC
// address. Grants are never deleted; expired and revoked grants remain as
// historical records.
type AccessGrant struct {
	ID                string      `bson:"_id" json:"id"`
	VoucherCode       string      `bson:"voucher_code,omitempty" json:"voucher_code,omitempty"`
	BookingRef        string      `bson:"booking_ref,omitempty" json:"booking_ref,omitempty"`
	SessionToken      string      `bson:"session_token,omitempty" json:"session_token,omitempty"`
	IntegrationID     string      `bson:"integration_id,omitempty" json:"integration_id,omitempty"`
	UserInputCode     string      `bson:"user_input_code,omitempty" json:"user_input_code,omitempty"`
	MAC               string      `bson:"mac" json:"mac"` // AA:BB:CC:DD:EE:FF
	StartUTC          time.Time   `bson:"start_utc" json:"start_utc"`
	EndUTC            time.Time   `bson:"end_utc" json:"end_utc"`
	UpKbps            int         `bson:"up_kbps,omitempty" json:"up_kbps,omitempty"`
	DownKbps          int         `bson:"down_kbps,omitempty" json:"down_kbps,omitempty"`
	ControllerGrantID string      `bson:"controller_grant_id,omitempty" json:"controller_grant_id,omitempty"`
	Status            GrantStatus `bson:"status" json:"status"`
	Version           int64       `bson:"version" json:"-"` // optimistic concurrency counter
	CreatedUTC        time.Time   `bson:"created_utc" json:"created_utc"`
	UpdatedUTC        time.Time   `bson:"updated_utc" json:"updated_utc"`
}

// EffectiveStatus derives the grant's status at the given instant. Status is
// not advanced by a timer; every read path applies this rule. A stored
// REVOKED status is terminal and always wins over time-based derivation.
func (g *AccessGrant) EffectiveStatus(now time.Time) GrantStatus {
	if g.Status == GrantStatusRevoked {
		return GrantStatusRevoked
	}
	switch {
	case now.Before(g.StartUTC):
		return GrantStatusPending
	case now.Before(g.EndUTC):
		return GrantStatusActive
	default:
		return GrantStatusExpired
	}
}
