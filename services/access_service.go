package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/cache"
	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/audit"
	"github.com/guestwifi/guestgate/internal/metrics"
	"github.com/guestwifi/guestgate/internal/netutil"
	"github.com/guestwifi/guestgate/internal/omada"
	"github.com/guestwifi/guestgate/internal/timeutil"
)

// ControllerAdapter abstracts the network controller the portal pushes
// authorizations to.
type ControllerAdapter interface {
	Authorize(ctx context.Context, mac string, expiresAt time.Time, upKbps, downKbps int) (omada.AuthResult, error)
	Revoke(ctx context.Context, mac string, grantID string) (omada.RevokeResult, error)
	Update(ctx context.Context, mac string, expiresAt time.Time, upKbps, downKbps int) (omada.AuthResult, error)
	Status(ctx context.Context, mac string) omada.StatusResult
}

// AccessService is the portal's front door: it turns a guest-supplied code
// and MAC into an access grant and keeps the controller in sync with grant
// lifecycle changes. Controller failures never undo a persisted grant; a
// transient failure parks the sync on the retry queue and the grant stays
// pending until the controller confirms.
type AccessService struct {
	grants     *GrantService
	vouchers   *VoucherService
	bookings   *BookingService
	controller ControllerAdapter
	queue      *RetryQueue
	status     cache.StatusStore

	now func() time.Time
}

// NewAccessService creates a new AccessService instance.
func NewAccessService(
	grants *GrantService,
	vouchers *VoucherService,
	bookings *BookingService,
	controller ControllerAdapter,
	queue *RetryQueue,
	status cache.StatusStore,
) *AccessService {
	return &AccessService{
		grants:     grants,
		vouchers:   vouchers,
		bookings:   bookings,
		controller: controller,
		queue:      queue,
		status:     status,
		now:        timeutil.Now,
	}
}

// SetQueue attaches the retry queue. The queue's executor is a method on
// this service, so the two are wired together after construction.
func (s *AccessService) SetQueue(queue *RetryQueue) {
	s.queue = queue
}

// AuthorizeCode authorizes a device from a guest-supplied code. The code is
// classified as a voucher or booking identifier, exchanged for a grant, and
// the grant is pushed to the controller. A grant whose controller sync is
// still pending is returned without error; the retry queue finishes the job.
func (s *AccessService) AuthorizeCode(ctx context.Context, rawCode, rawMAC string) (*domain.AccessGrant, error) {
	mac, err := netutil.NormalizeMAC(rawMAC)
	if err != nil {
		return nil, errors.NewValidation(err.Error())
	}
	validation, err := domain.ClassifyCode(rawCode)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var grant *domain.AccessGrant
	switch validation.Type {
	case domain.CodeTypeVoucher:
		grant, err = s.vouchers.Redeem(ctx, validation.Normalized, mac, now)
	case domain.CodeTypeBooking:
		var event *domain.RentalEvent
		var cfg *domain.IntegrationConfig
		event, cfg, err = s.bookings.ValidateCode(ctx, validation.Normalized)
		if err == nil {
			grant, err = s.bookings.CreateGrant(ctx, event, cfg, mac, validation.Original, now)
		}
	}
	if err != nil {
		audit.Log("guestgate", "guest.authorize", mac, validation.Normalized, "", false, err)
		return nil, err
	}

	return s.syncAuthorize(ctx, grant, now)
}

// ExtendGrant lengthens a grant and pushes the new expiry to the controller.
func (s *AccessService) ExtendGrant(ctx context.Context, id string, extraMinutes int) (*domain.AccessGrant, error) {
	now := s.now()
	grant, err := s.grants.Extend(ctx, id, extraMinutes, now)
	if err != nil {
		return nil, err
	}

	_, err = s.controller.Update(ctx, grant.MAC, grant.EndUTC, grant.UpKbps, grant.DownKbps)
	if err != nil {
		if errors.IsTransient(err) {
			s.enqueue(domain.OperationUpdate, grant, now)
			return grant, nil
		}
		metrics.ControllerErrorsTotal.Inc()
		return grant, errors.NewController("controller rejected the updated expiry: " + err.Error())
	}

	s.invalidateStatus(ctx, grant.MAC)
	return grant, nil
}

// RevokeGrant terminates a grant and removes the device's authorization on
// the controller. The local revocation always wins: a controller failure is
// retried or reported, never rolled back.
func (s *AccessService) RevokeGrant(ctx context.Context, id string) (*domain.AccessGrant, error) {
	now := s.now()
	grant, err := s.grants.Revoke(ctx, id, now)
	if err != nil {
		return nil, err
	}

	_, err = s.controller.Revoke(ctx, grant.MAC, grant.ControllerGrantID)
	if err != nil {
		if errors.IsTransient(err) {
			s.enqueue(domain.OperationRevoke, grant, now)
			return grant, nil
		}
		metrics.ControllerErrorsTotal.Inc()
		return grant, errors.NewController("controller revocation failed: " + err.Error())
	}

	s.invalidateStatus(ctx, grant.MAC)
	return grant, nil
}

// ExecuteRetry replays a queued controller operation. It is the executor
// the retry queue is started with.
func (s *AccessService) ExecuteRetry(ctx context.Context, op *domain.RetryOperation) error {
	switch op.Type {
	case domain.OperationAuthorize, domain.OperationUpdate:
		result, err := s.controller.Authorize(ctx, op.MAC, op.ExpiresAt, op.UpKbps, op.DownKbps)
		if err != nil {
			return err
		}
		if err := s.grants.MarkAuthorized(ctx, op.GrantID, result.GrantID, s.now()); err != nil {
			log.Warn().Err(err).Str("grant_id", op.GrantID).Msg("could not record controller confirmation")
		}
	case domain.OperationRevoke:
		if _, err := s.controller.Revoke(ctx, op.MAC, op.ControllerID); err != nil {
			return err
		}
	}
	s.invalidateStatus(ctx, op.MAC)
	return nil
}

// ControllerStatus reports whether a device is currently authorized on the
// controller, serving recent answers from the status cache.
func (s *AccessService) ControllerStatus(ctx context.Context, rawMAC string) (*cache.StatusEntry, error) {
	mac, err := netutil.NormalizeMAC(rawMAC)
	if err != nil {
		return nil, errors.NewValidation(err.Error())
	}

	if entry, ok := s.status.Get(ctx, mac); ok {
		return entry, nil
	}

	result := s.controller.Status(ctx, mac)
	entry := cache.StatusEntry{
		MAC:              mac,
		Authorized:       result.Authorized,
		RemainingSeconds: result.RemainingSeconds,
		CheckedAt:        s.now(),
	}
	if err := s.status.Set(ctx, entry); err != nil {
		log.Warn().Err(err).Str("mac", mac).Msg("status cache write failed")
	}
	return &entry, nil
}

// syncAuthorize pushes a fresh grant to the controller. A transient failure
// queues a retry and reports the pending grant as success.
func (s *AccessService) syncAuthorize(ctx context.Context, grant *domain.AccessGrant, now time.Time) (*domain.AccessGrant, error) {
	result, err := s.controller.Authorize(ctx, grant.MAC, grant.EndUTC, grant.UpKbps, grant.DownKbps)
	if err != nil {
		if errors.IsTransient(err) {
			s.enqueue(domain.OperationAuthorize, grant, now)
			audit.Log("guestgate", "guest.authorize", grant.MAC, grant.UserInputCode, grant.ID+" (controller sync queued)", true, nil)
			return grant, nil
		}
		metrics.ControllerErrorsTotal.Inc()
		audit.Log("guestgate", "guest.authorize", grant.MAC, grant.UserInputCode, grant.ID, false, err)
		return nil, errors.NewController("controller authorization failed: " + err.Error())
	}

	if err := s.grants.MarkAuthorized(ctx, grant.ID, result.GrantID, now); err != nil {
		log.Warn().Err(err).Str("grant_id", grant.ID).Msg("could not record controller confirmation")
	} else {
		grant.ControllerGrantID = result.GrantID
		grant.Status = grant.EffectiveStatus(now)
	}

	s.invalidateStatus(ctx, grant.MAC)
	audit.Log("guestgate", "guest.authorize", grant.MAC, grant.UserInputCode, grant.ID, true, nil)
	return grant, nil
}

func (s *AccessService) enqueue(opType domain.OperationType, grant *domain.AccessGrant, now time.Time) {
	s.queue.Enqueue(&domain.RetryOperation{
		Type:         opType,
		MAC:          grant.MAC,
		GrantID:      grant.ID,
		ControllerID: grant.ControllerGrantID,
		ExpiresAt:    grant.EndUTC,
		UpKbps:       grant.UpKbps,
		DownKbps:     grant.DownKbps,
	}, now)
}

func (s *AccessService) invalidateStatus(ctx context.Context, mac string) {
	if err := s.status.Delete(ctx, mac); err != nil {
		log.Debug().Err(err).Str("mac", mac).Msg("status cache invalidation failed")
	}
}
