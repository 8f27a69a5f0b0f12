package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestwifi/guestgate/cache"
	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/omada"
)

type accessFixture struct {
	svc        *AccessService
	grants     *memGrantRepo
	vouchers   *VoucherService
	controller *fakeController
	queue      *RetryQueue
	now        time.Time
}

func newAccessFixture(t *testing.T) *accessFixture {
	t.Helper()

	grants := newMemGrantRepo()
	grantSvc := NewGrantService(grants)
	voucherSvc := NewVoucherService(newMemVoucherRepo(), grantSvc, noopTx{})
	voucherSvc.sleep = func(time.Duration) {}

	bookingSvc := NewBookingService(
		&memEventRepo{events: []*domain.RentalEvent{testEvent()}},
		&memIntegrationRepo{cfg: testIntegration(30)},
		grantSvc,
	)

	controller := &fakeController{}
	status := cache.NewMemoryStatusStore(time.Minute)
	t.Cleanup(func() { _ = status.Close() })

	svc := NewAccessService(grantSvc, voucherSvc, bookingSvc, controller, nil, status)
	queue := NewRetryQueue(svc.ExecuteRetry, RetryQueueConfig{})
	svc.queue = queue

	fixture := &accessFixture{
		svc:        svc,
		grants:     grants,
		vouchers:   voucherSvc,
		controller: controller,
		queue:      queue,
		now:        time.Date(2026, 7, 14, 16, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return fixture.now }
	return fixture
}

func (f *accessFixture) issueVoucher(t *testing.T, code string, minutes int) {
	t.Helper()
	_, err := f.vouchers.Create(context.Background(), code, minutes, 0, 0, "", f.now.Add(-time.Hour))
	require.NoError(t, err)
}

func TestAuthorizeVoucherCodeEndToEnd(t *testing.T) {
	f := newAccessFixture(t)
	f.issueVoucher(t, "SUMMER24", 480)

	grant, err := f.svc.AuthorizeCode(context.Background(), " summer24 ", "aa-bb-cc-dd-ee-ff")
	require.NoError(t, err)

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", grant.MAC, "MAC is normalized")
	assert.Equal(t, "SUMMER24", grant.VoucherCode, "code is normalized")
	assert.Equal(t, domain.GrantStatusActive, grant.Status)
	assert.Equal(t, "ctrl-AA:BB:CC:DD:EE:FF", grant.ControllerGrantID)
	assert.Equal(t, 1, f.controller.authorizeCalls)
}

func TestAuthorizeBookingCodeEndToEnd(t *testing.T) {
	f := newAccessFixture(t)

	grant, err := f.svc.AuthorizeCode(context.Background(), "48213", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	assert.Equal(t, "48213", grant.BookingRef)
	assert.Equal(t, time.Date(2026, 7, 16, 11, 30, 0, 0, time.UTC), grant.EndUTC)
	assert.Equal(t, domain.GrantStatusActive, grant.Status)
}

func TestAuthorizeRejectsBadMAC(t *testing.T) {
	f := newAccessFixture(t)

	_, err := f.svc.AuthorizeCode(context.Background(), "SUMMER24", "not-a-mac")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Zero(t, f.controller.authorizeCalls)
}

func TestTransientControllerFailureQueuesRetry(t *testing.T) {
	f := newAccessFixture(t)
	f.issueVoucher(t, "SUMMER24", 480)
	f.controller.authorizeErr = errors.NewRetryExhausted("controller unreachable")

	grant, err := f.svc.AuthorizeCode(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err, "the grant survives a transient controller outage")
	require.NotNil(t, grant)
	assert.Empty(t, grant.ControllerGrantID)
	assert.Equal(t, 1, f.queue.Depth())

	// The controller comes back; the queued retry finishes the sync.
	f.controller.authorizeErr = nil
	f.queue.processDue(context.Background(), f.now.Add(time.Minute))
	assert.Zero(t, f.queue.Depth())

	stored, err := f.grants.GetByID(context.Background(), grant.ID)
	require.NoError(t, err)
	assert.Equal(t, "ctrl-AA:BB:CC:DD:EE:FF", stored.ControllerGrantID)
}

func TestPermanentControllerFailureSurfaces(t *testing.T) {
	f := newAccessFixture(t)
	f.issueVoucher(t, "SUMMER24", 480)
	f.controller.authorizeErr = errors.NewAuthentication("controller rejected session")

	_, err := f.svc.AuthorizeCode(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindController))
	assert.Zero(t, f.queue.Depth(), "permanent failures are not retried")
}

func TestRevokeGrantSyncsController(t *testing.T) {
	f := newAccessFixture(t)
	f.issueVoucher(t, "SUMMER24", 480)
	grant, err := f.svc.AuthorizeCode(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Minute)
	revoked, err := f.svc.RevokeGrant(context.Background(), grant.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.GrantStatusRevoked, revoked.Status)
	assert.Equal(t, 1, f.controller.revokeCalls)
}

func TestRevokeQueuesRetryOnTransientFailure(t *testing.T) {
	f := newAccessFixture(t)
	f.issueVoucher(t, "SUMMER24", 480)
	grant, err := f.svc.AuthorizeCode(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)

	f.controller.revokeErr = errors.NewRetryExhausted("controller unreachable")
	revoked, err := f.svc.RevokeGrant(context.Background(), grant.ID)
	require.NoError(t, err, "local revocation wins even when the controller is down")
	assert.Equal(t, domain.GrantStatusRevoked, revoked.Status)
	assert.Equal(t, 1, f.queue.Depth())
}

func TestExtendGrantPushesNewExpiry(t *testing.T) {
	f := newAccessFixture(t)
	f.issueVoucher(t, "SUMMER24", 60)
	grant, err := f.svc.AuthorizeCode(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	callsAfterAuthorize := f.controller.authorizeCalls

	extended, err := f.svc.ExtendGrant(context.Background(), grant.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, grant.EndUTC.Add(120*time.Minute), extended.EndUTC)
	assert.Equal(t, callsAfterAuthorize+1, f.controller.authorizeCalls, "extension re-authorizes on the controller")
}

func TestControllerStatusUsesCache(t *testing.T) {
	f := newAccessFixture(t)
	f.controller.statusResult = omada.StatusResult{Authorized: true, RemainingSeconds: 540}

	first, err := f.svc.ControllerStatus(context.Background(), "AA:BB:CC:DD:EE:FF")
	require.NoError(t, err)
	assert.True(t, first.Authorized)
	assert.Equal(t, 1, f.controller.statusCalls)

	second, err := f.svc.ControllerStatus(context.Background(), "aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)
	assert.True(t, second.Authorized)
	assert.Equal(t, 1, f.controller.statusCalls, "second lookup is served from the cache")
}
