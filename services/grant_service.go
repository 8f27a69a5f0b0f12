package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/audit"
	"github.com/guestwifi/guestgate/internal/metrics"
	"github.com/guestwifi/guestgate/internal/timeutil"
)

// GrantService owns the access grant lifecycle. Grant windows are aligned
// to whole minutes when a grant is created or extended: the start is floored
// and the end is ceiled, so rounding can only lengthen a window. Status is
// derived from the clock on every read; a stored status is only a snapshot.
type GrantService struct {
	grants domain.GrantRepository
}

// NewGrantService creates a new GrantService instance.
func NewGrantService(grants domain.GrantRepository) *GrantService {
	return &GrantService{grants: grants}
}

// Create persists a new grant for the given window. The window is rounded
// outward to minute boundaries and must be non-empty after rounding. New
// grants start pending; controller confirmation promotes them.
func (s *GrantService) Create(ctx context.Context, origin domain.GrantOrigin, mac string, start, end, now time.Time) (*domain.AccessGrant, error) {
	if origin.Empty() {
		return nil, errors.NewValidation("grant origin is required")
	}
	if mac == "" {
		return nil, errors.NewValidation("device MAC is required")
	}
	start = timeutil.FloorToMinute(start)
	end = timeutil.CeilToMinute(end)
	if !end.After(start) {
		return nil, errors.NewValidation("grant window must end after it starts")
	}

	grant := &domain.AccessGrant{
		ID:            uuid.NewString(),
		VoucherCode:   origin.VoucherCode,
		BookingRef:    origin.BookingRef,
		SessionToken:  origin.SessionToken,
		IntegrationID: origin.IntegrationID,
		UserInputCode: origin.UserInputCode,
		MAC:           mac,
		StartUTC:      start,
		EndUTC:        end,
		UpKbps:        origin.UpKbps,
		DownKbps:      origin.DownKbps,
		Status:        domain.GrantStatusPending,
		CreatedUTC:    now,
		UpdatedUTC:    now,
	}

	if err := s.grants.Insert(ctx, grant); err != nil {
		return nil, err
	}

	metrics.GrantsCreatedTotal.Inc()
	log.Info().
		Str("grant_id", grant.ID).
		Str("mac", grant.MAC).
		Time("start_utc", grant.StartUTC).
		Time("end_utc", grant.EndUTC).
		Msg("access grant created")
	return grant, nil
}

// Get loads a grant and refreshes its stored status from the clock. The
// write-back is best effort: a concurrent update loses the race harmlessly
// because every reader re-derives the same status.
func (s *GrantService) Get(ctx context.Context, id string, now time.Time) (*domain.AccessGrant, error) {
	grant, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	effective := grant.EffectiveStatus(now)
	if effective != grant.Status {
		grant.Status = effective
		grant.UpdatedUTC = now
		if err := s.grants.Update(ctx, grant); err != nil && !errors.IsKind(err, errors.KindConflict) {
			log.Warn().Err(err).Str("grant_id", grant.ID).Msg("status write-back failed")
		}
	}
	return grant, nil
}

// Extend moves a grant's end forward by extraMinutes from its current end.
// Extending an expired grant resurrects it: the new window makes it active
// again. Revoked grants stay revoked.
func (s *GrantService) Extend(ctx context.Context, id string, extraMinutes int, now time.Time) (*domain.AccessGrant, error) {
	if extraMinutes <= 0 {
		return nil, errors.NewValidation("extension must be a positive number of minutes")
	}

	grant, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if grant.EffectiveStatus(now) == domain.GrantStatusRevoked {
		return nil, errors.NewRevoked("revoked grants cannot be extended")
	}

	grant.EndUTC = timeutil.CeilToMinute(grant.EndUTC.Add(time.Duration(extraMinutes) * time.Minute))
	grant.Status = grant.EffectiveStatus(now)
	grant.UpdatedUTC = now
	if err := s.grants.Update(ctx, grant); err != nil {
		return nil, err
	}

	audit.Log("guestgate", "grant.extend", "", grant.ID, grant.EndUTC.Format(time.RFC3339), true, nil)
	return grant, nil
}

// Revoke terminates a grant immediately. Revocation is idempotent: revoking
// an already-revoked grant succeeds without changing it. The grant's end is
// pulled back to the revocation instant, truncated to the second.
func (s *GrantService) Revoke(ctx context.Context, id string, now time.Time) (*domain.AccessGrant, error) {
	grant, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if grant.Status == domain.GrantStatusRevoked {
		return grant, nil
	}

	grant.Status = domain.GrantStatusRevoked
	grant.EndUTC = now.Truncate(time.Second)
	grant.UpdatedUTC = now
	if err := s.grants.Update(ctx, grant); err != nil {
		return nil, err
	}

	metrics.GrantsRevokedTotal.Inc()
	audit.Log("guestgate", "grant.revoke", "", grant.ID, grant.MAC, true, nil)
	return grant, nil
}

// MarkAuthorized records the controller's confirmation of a grant. The
// stored status flips to active only while the grant window is open.
func (s *GrantService) MarkAuthorized(ctx context.Context, id, controllerGrantID string, now time.Time) error {
	grant, err := s.grants.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if grant.Status == domain.GrantStatusRevoked {
		// The grant was revoked while the controller call was in flight;
		// leave the terminal state alone.
		return nil
	}

	grant.ControllerGrantID = controllerGrantID
	grant.Status = grant.EffectiveStatus(now)
	grant.UpdatedUTC = now
	return s.grants.Update(ctx, grant)
}

// List returns up to limit grants with their statuses refreshed from the
// clock. Like Get, stale stored statuses are written back best effort so
// readers of the raw collection converge too.
func (s *GrantService) List(ctx context.Context, limit int64, now time.Time) ([]*domain.AccessGrant, error) {
	grants, err := s.grants.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	for _, grant := range grants {
		effective := grant.EffectiveStatus(now)
		if effective == grant.Status {
			continue
		}
		grant.Status = effective
		grant.UpdatedUTC = now
		if err := s.grants.Update(ctx, grant); err != nil && !errors.IsKind(err, errors.KindConflict) {
			log.Warn().Err(err).Str("grant_id", grant.ID).Msg("status write-back failed")
		}
	}
	return grants, nil
}

// FindActiveByMAC returns the grants currently authorizing a MAC.
func (s *GrantService) FindActiveByMAC(ctx context.Context, mac string, now time.Time) ([]*domain.AccessGrant, error) {
	return s.grants.FindActiveByMAC(ctx, mac, now)
}

// FindCurrentByBookingRef returns the live grants carrying a booking
// reference, matched exactly against the stored case-preserved value.
func (s *GrantService) FindCurrentByBookingRef(ctx context.Context, bookingRef string, now time.Time) ([]*domain.AccessGrant, error) {
	return s.grants.FindCurrentByBookingRef(ctx, bookingRef, now)
}
