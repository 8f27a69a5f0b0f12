package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
)

func newBookingFixture(cfg *domain.IntegrationConfig, events ...*domain.RentalEvent) (*BookingService, *memGrantRepo) {
	grants := newMemGrantRepo()
	svc := NewBookingService(
		&memEventRepo{events: events},
		&memIntegrationRepo{cfg: cfg},
		NewGrantService(grants),
	)
	return svc, grants
}

func testIntegration(grace int) *domain.IntegrationConfig {
	return &domain.IntegrationConfig{
		ID:                   "cfg-1",
		IntegrationID:        "lodgify-1",
		IdentifierAttr:       domain.IdentifierSlotCode,
		CheckoutGraceMinutes: grace,
	}
}

func testEvent() *domain.RentalEvent {
	return &domain.RentalEvent{
		ID:            "evt-1",
		IntegrationID: "lodgify-1",
		SlotName:      "Seaside Cottage",
		SlotCode:      "48213",
		LastFour:      "8213",
		StartUTC:      time.Date(2026, 7, 14, 15, 0, 0, 0, time.UTC),
		EndUTC:        time.Date(2026, 7, 16, 11, 0, 0, 0, time.UTC),
	}
}

func TestValidateCodeMatchesConfiguredAttr(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(0), testEvent())

	event, cfg, err := svc.ValidateCode(context.Background(), "48213")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, domain.IdentifierSlotCode, cfg.IdentifierAttr)
}

func TestValidateCodeFallsBackToSlotName(t *testing.T) {
	event := testEvent()
	event.SlotCode = ""
	svc, _ := newBookingFixture(testIntegration(0), event)

	// Case-insensitive match against the slot name fallback.
	found, _, err := svc.ValidateCode(context.Background(), "seaside cottage")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", found.ID)
	assert.Equal(t, "Seaside Cottage", found.SlotName, "stored case is preserved")
}

func TestValidateCodeUnknown(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(0), testEvent())

	_, _, err := svc.ValidateCode(context.Background(), "99999")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestValidateCodeWithoutIntegration(t *testing.T) {
	svc, _ := newBookingFixture(nil)

	_, _, err := svc.ValidateCode(context.Background(), "48213")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindIntegrationUnavailable))
}

func TestCreateGrantCoversBookingPlusGrace(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(30), testEvent())
	event, cfg, err := svc.ValidateCode(context.Background(), "48213")
	require.NoError(t, err)

	now := time.Date(2026, 7, 14, 16, 30, 0, 0, time.UTC)
	grant, err := svc.CreateGrant(context.Background(), event, cfg, "AA:BB:CC:DD:EE:FF", "48213", now)
	require.NoError(t, err)

	assert.Equal(t, now, grant.StartUTC)
	assert.Equal(t, time.Date(2026, 7, 16, 11, 30, 0, 0, time.UTC), grant.EndUTC, "checkout grace extends access")
	assert.Equal(t, "48213", grant.BookingRef)
	assert.Equal(t, "lodgify-1", grant.IntegrationID)
}

func TestCreateGrantEarlyCheckInBoundary(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(0), testEvent())
	event, cfg, err := svc.ValidateCode(context.Background(), "48213")
	require.NoError(t, err)

	// Exactly one hour before check-in is allowed; the grant opens at the
	// booking start.
	now := event.StartUTC.Add(-60 * time.Minute)
	grant, err := svc.CreateGrant(context.Background(), event, cfg, "AA:BB:CC:DD:EE:FF", "48213", now)
	require.NoError(t, err)
	assert.Equal(t, event.StartUTC, grant.StartUTC)
	assert.Equal(t, domain.GrantStatusPending, grant.EffectiveStatus(now))
}

func TestCreateGrantTooEarly(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(0), testEvent())
	event, cfg, err := svc.ValidateCode(context.Background(), "48213")
	require.NoError(t, err)

	now := event.StartUTC.Add(-61 * time.Minute)
	_, err = svc.CreateGrant(context.Background(), event, cfg, "AA:BB:CC:DD:EE:FF", "48213", now)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindOutsideWindow))
}

func TestCreateGrantAfterCheckoutGrace(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(15), testEvent())
	event, cfg, err := svc.ValidateCode(context.Background(), "48213")
	require.NoError(t, err)

	// One second past the grace boundary.
	now := event.EndUTC.Add(15*time.Minute + time.Second)
	_, err = svc.CreateGrant(context.Background(), event, cfg, "AA:BB:CC:DD:EE:FF", "48213", now)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindOutsideWindow))
}

func TestCreateGrantRejectsSecondGrantForBooking(t *testing.T) {
	svc, _ := newBookingFixture(testIntegration(0), testEvent())
	event, cfg, err := svc.ValidateCode(context.Background(), "48213")
	require.NoError(t, err)

	now := time.Date(2026, 7, 14, 16, 0, 0, 0, time.UTC)
	_, err = svc.CreateGrant(context.Background(), event, cfg, "AA:BB:CC:DD:EE:FF", "48213", now)
	require.NoError(t, err)

	// A different device on the same booking is still one booking.
	_, err = svc.CreateGrant(context.Background(), event, cfg, "11:22:33:44:55:66", "48213", now.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDuplicate))
}
