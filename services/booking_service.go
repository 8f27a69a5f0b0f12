package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/audit"
	"github.com/guestwifi/guestgate/internal/metrics"
)

// Guests may come online this long before their booking starts.
const earlyCheckInWindow = 60 * time.Minute

// BookingService authorizes guests against cached booking records. A guest
// types the identifier from their reservation; the service resolves it to a
// rental event and derives an access window from the booking window.
type BookingService struct {
	events       domain.RentalEventRepository
	integrations domain.IntegrationRepository
	grants       *GrantService
}

// NewBookingService creates a new BookingService instance.
func NewBookingService(events domain.RentalEventRepository, integrations domain.IntegrationRepository, grants *GrantService) *BookingService {
	return &BookingService{
		events:       events,
		integrations: integrations,
		grants:       grants,
	}
}

// ValidateCode resolves a guest-supplied booking code to a rental event.
// Lookup tries the integration's configured identifier attribute first and
// falls back to slot code, then slot name, because upstream records do not
// always carry every attribute. Matching is case-insensitive.
func (s *BookingService) ValidateCode(ctx context.Context, code string) (*domain.RentalEvent, *domain.IntegrationConfig, error) {
	cfg, err := s.integrations.GetSingle(ctx)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, nil, errors.NewIntegrationUnavailable("no booking integration is configured")
		}
		return nil, nil, err
	}

	for _, attr := range domain.IdentifierChain(cfg.IdentifierAttr) {
		event, err := s.events.FindByAttr(ctx, cfg.IntegrationID, attr, code)
		if err == nil {
			return event, cfg, nil
		}
		if !errors.IsKind(err, errors.KindNotFound) {
			return nil, nil, err
		}
	}

	return nil, nil, errors.NewNotFound("no booking matches the supplied code")
}

// CreateGrant issues an access grant for a resolved booking. The guest may
// connect up to an hour before the booking starts (boundary inclusive) and
// keeps access through the booking end plus the configured checkout grace.
// The grace is applied here only; the stored booking window stays raw. One
// live grant per booking reference is allowed at a time.
func (s *BookingService) CreateGrant(ctx context.Context, event *domain.RentalEvent, cfg *domain.IntegrationConfig, mac, userInput string, now time.Time) (*domain.AccessGrant, error) {
	if now.Before(event.StartUTC.Add(-earlyCheckInWindow)) {
		return nil, errors.NewOutsideWindow("booking has not started yet")
	}
	grace := time.Duration(cfg.CheckoutGraceMinutes) * time.Minute
	accessEnd := event.EndUTC.Add(grace)
	if now.After(accessEnd) {
		return nil, errors.NewOutsideWindow("booking has ended")
	}

	bookingRef := event.Identifier(cfg.IdentifierAttr)
	existing, err := s.grants.FindCurrentByBookingRef(ctx, bookingRef, now)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, errors.NewDuplicate("this booking already has a live access grant")
	}

	// An early check-in produces a pending grant that opens at the booking
	// start.
	start := now
	if event.StartUTC.After(now) {
		start = event.StartUTC
	}

	grant, err := s.grants.Create(ctx, domain.GrantOrigin{
		BookingRef:    bookingRef,
		IntegrationID: event.IntegrationID,
		UserInputCode: userInput,
	}, mac, start, accessEnd, now)
	if err != nil {
		return nil, err
	}

	metrics.BookingGrantsTotal.Inc()
	audit.Log("guestgate", "booking.authorize", mac, grant.BookingRef, grant.ID, true, nil)
	log.Info().
		Str("grant_id", grant.ID).
		Str("booking_ref", grant.BookingRef).
		Time("access_end", accessEnd).
		Msg("booking grant created")
	return grant, nil
}
