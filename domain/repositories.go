package domain

import (
	"context"
	"time"
)

// GrantRepository defines persistence for access grants. Updates are
// compare-and-swap on the grant's version counter; a concurrent writer
// surfaces as a conflict error rather than a lost update.
type GrantRepository interface {
	Insert(ctx context.Context, grant *AccessGrant) error
	GetByID(ctx context.Context, id string) (*AccessGrant, error)
	Update(ctx context.Context, grant *AccessGrant) error
	// FindActiveByMAC returns non-revoked grants for a MAC whose window has
	// not yet ended at the given instant.
	FindActiveByMAC(ctx context.Context, mac string, now time.Time) ([]*AccessGrant, error)
	// FindCurrentByBookingRef returns non-revoked grants carrying the given
	// booking reference (case-sensitive exact match against the stored,
	// case-preserved value) whose end_utc is still in the future.
	FindCurrentByBookingRef(ctx context.Context, bookingRef string, now time.Time) ([]*AccessGrant, error)
	List(ctx context.Context, limit int64) ([]*AccessGrant, error)
}

// VoucherRepository defines persistence for vouchers. Insert must surface a
// primary-key collision as a duplicate error so the code generator can retry.
type VoucherRepository interface {
	Insert(ctx context.Context, voucher *Voucher) error
	GetByCode(ctx context.Context, code string) (*Voucher, error)
	Update(ctx context.Context, voucher *Voucher) error
	List(ctx context.Context, limit int64) ([]*Voucher, error)
}

// RentalEventRepository provides read access to cached booking records.
// Matching against identifier attributes is case-insensitive; returned
// records preserve their original case.
type RentalEventRepository interface {
	FindByAttr(ctx context.Context, integrationID string, attr IdentifierAttr, code string) (*RentalEvent, error)
}

// IntegrationRepository provides read access to the booking integration
// configuration.
type IntegrationRepository interface {
	// GetSingle resolves the single configured integration, or a not-found
	// error when none exists.
	GetSingle(ctx context.Context) (*IntegrationConfig, error)
}

// TxRunner executes a function inside a single transactional unit when the
// backing store supports it, and falls back to plain execution otherwise.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
