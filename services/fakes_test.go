package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/omada"
)

type memGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*domain.AccessGrant
}

func newMemGrantRepo() *memGrantRepo {
	return &memGrantRepo{grants: make(map[string]*domain.AccessGrant)}
}

func (r *memGrantRepo) Insert(_ context.Context, grant *domain.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[grant.ID]; ok {
		return errors.NewDuplicate("grant already exists")
	}
	copied := *grant
	r.grants[grant.ID] = &copied
	return nil
}

func (r *memGrantRepo) GetByID(_ context.Context, id string) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[id]
	if !ok {
		return nil, errors.NewNotFound("grant not found")
	}
	copied := *grant
	return &copied, nil
}

func (r *memGrantRepo) Update(_ context.Context, grant *domain.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.grants[grant.ID]
	if !ok {
		return errors.NewNotFound("grant not found")
	}
	if stored.Version != grant.Version {
		return errors.NewConflict("grant was modified concurrently")
	}
	copied := *grant
	copied.Version++
	r.grants[grant.ID] = &copied
	grant.Version = copied.Version
	return nil
}

func (r *memGrantRepo) FindActiveByMAC(_ context.Context, mac string, now time.Time) ([]*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AccessGrant
	for _, grant := range r.grants {
		if grant.MAC == mac && grant.Status != domain.GrantStatusRevoked && grant.EndUTC.After(now) {
			copied := *grant
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memGrantRepo) FindCurrentByBookingRef(_ context.Context, bookingRef string, now time.Time) ([]*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AccessGrant
	for _, grant := range r.grants {
		if grant.BookingRef == bookingRef && grant.Status != domain.GrantStatusRevoked && grant.EndUTC.After(now) {
			copied := *grant
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memGrantRepo) List(_ context.Context, limit int64) ([]*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AccessGrant
	for _, grant := range r.grants {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		copied := *grant
		out = append(out, &copied)
	}
	return out, nil
}

type memVoucherRepo struct {
	mu       sync.Mutex
	vouchers map[string]*domain.Voucher
}

func newMemVoucherRepo() *memVoucherRepo {
	return &memVoucherRepo{vouchers: make(map[string]*domain.Voucher)}
}

func (r *memVoucherRepo) Insert(_ context.Context, voucher *domain.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vouchers[voucher.Code]; ok {
		return errors.NewDuplicate("voucher code already exists")
	}
	copied := *voucher
	r.vouchers[voucher.Code] = &copied
	return nil
}

func (r *memVoucherRepo) GetByCode(_ context.Context, code string) (*domain.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	voucher, ok := r.vouchers[code]
	if !ok {
		return nil, errors.NewNotFound("voucher not found")
	}
	copied := *voucher
	return &copied, nil
}

func (r *memVoucherRepo) Update(_ context.Context, voucher *domain.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vouchers[voucher.Code]; !ok {
		return errors.NewNotFound("voucher not found")
	}
	copied := *voucher
	r.vouchers[voucher.Code] = &copied
	return nil
}

func (r *memVoucherRepo) List(_ context.Context, limit int64) ([]*domain.Voucher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Voucher
	for _, voucher := range r.vouchers {
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
		copied := *voucher
		out = append(out, &copied)
	}
	return out, nil
}

type memEventRepo struct {
	events []*domain.RentalEvent
}

func (r *memEventRepo) FindByAttr(_ context.Context, integrationID string, attr domain.IdentifierAttr, code string) (*domain.RentalEvent, error) {
	for _, event := range r.events {
		if event.IntegrationID != integrationID {
			continue
		}
		if strings.EqualFold(event.AttrValue(attr), code) && event.AttrValue(attr) != "" {
			copied := *event
			return &copied, nil
		}
	}
	return nil, errors.NewNotFound("rental event not found")
}

type memIntegrationRepo struct {
	cfg *domain.IntegrationConfig
}

func (r *memIntegrationRepo) GetSingle(_ context.Context) (*domain.IntegrationConfig, error) {
	if r.cfg == nil {
		return nil, errors.NewNotFound("no integration configured")
	}
	copied := *r.cfg
	return &copied, nil
}

// noopTx runs the function directly, like the store does without a replica
// set.
type noopTx struct{}

func (noopTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeController records calls and replays scripted results.
type fakeController struct {
	mu sync.Mutex

	authorizeErr   error
	authorizeCalls int
	authResult     omada.AuthResult

	revokeErr   error
	revokeCalls int

	statusResult omada.StatusResult
	statusCalls  int
}

func (c *fakeController) Authorize(_ context.Context, mac string, _ time.Time, _, _ int) (omada.AuthResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorizeCalls++
	if c.authorizeErr != nil {
		return omada.AuthResult{}, c.authorizeErr
	}
	result := c.authResult
	if result.GrantID == "" {
		result = omada.AuthResult{GrantID: "ctrl-" + mac, Status: "active", MAC: mac}
	}
	return result, nil
}

func (c *fakeController) Revoke(_ context.Context, mac string, _ string) (omada.RevokeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revokeCalls++
	if c.revokeErr != nil {
		return omada.RevokeResult{MAC: mac}, c.revokeErr
	}
	return omada.RevokeResult{Success: true, MAC: mac}, nil
}

func (c *fakeController) Update(ctx context.Context, mac string, expiresAt time.Time, upKbps, downKbps int) (omada.AuthResult, error) {
	return c.Authorize(ctx, mac, expiresAt, upKbps, downKbps)
}

func (c *fakeController) Status(_ context.Context, mac string) omada.StatusResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCalls++
	result := c.statusResult
	result.MAC = mac
	return result
}
