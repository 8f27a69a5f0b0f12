package domain

import "time"

// VoucherStatus represents the lifecycle status of a voucher.
type VoucherStatus string

const (
	VoucherStatusUnused  VoucherStatus = "unused"
	VoucherStatusActive  VoucherStatus = "active"
	VoucherStatusExpired VoucherStatus = "expired"
	VoucherStatusRevoked VoucherStatus = "revoked"
)

// Voucher is an admin-issued, redeemable access code. The code itself is the
// primary identity (A-Z0-9, 4-24 characters).
type Voucher struct {
	Code            string        `bson:"_id" json:"code"`
	CreatedUTC      time.Time     `bson:"created_utc" json:"created_utc"`
	DurationMinutes int           `bson:"duration_minutes" json:"duration_minutes"`
	UpKbps          int           `bson:"up_kbps,omitempty" json:"up_kbps,omitempty"`
	DownKbps        int           `bson:"down_kbps,omitempty" json:"down_kbps,omitempty"`
	Status          VoucherStatus `bson:"status" json:"status"`
	BookingRef      string        `bson:"booking_ref,omitempty" json:"booking_ref,omitempty"`
	RedeemedCount   int           `bson:"redeemed_count" json:"redeemed_count"`
	LastRedeemedUTC time.Time     `bson:"last_redeemed_utc,omitempty" json:"last_redeemed_utc,omitempty"`
}

// ExpiresUTC is the voucher's derived expiry: creation time plus duration,
// floored to the minute. It is recomputed on demand, never stored.
func (v *Voucher) ExpiresUTC() time.Time {
	return v.CreatedUTC.Add(time.Duration(v.DurationMinutes) * time.Minute).Truncate(time.Minute)
}
