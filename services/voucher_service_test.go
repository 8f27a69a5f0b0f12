package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
)

func newVoucherFixture() (*VoucherService, *memVoucherRepo, *memGrantRepo) {
	vouchers := newMemVoucherRepo()
	grants := newMemGrantRepo()
	svc := NewVoucherService(vouchers, NewGrantService(grants), noopTx{})
	svc.sleep = func(time.Duration) {}
	return svc, vouchers, grants
}

func TestGenerateCodeAlphabet(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{10}$`)
	for i := 0; i < 20; i++ {
		code, err := GenerateCode(10)
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
	}
}

func TestGenerateCodeAlwaysContainsLetter(t *testing.T) {
	// A one-character code must be a letter, or the classifier would read
	// it as numeric; longer codes inherit the same guarantee.
	for i := 0; i < 50; i++ {
		code, err := GenerateCode(1)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[A-Z]$`), code)
	}
	for i := 0; i < 20; i++ {
		code, err := GenerateCode(10)
		require.NoError(t, err)
		assert.NotEqual(t, domain.CodeTypeBooking, domain.DetectCodeType(code))
	}
}

func TestCreateGeneratesUniqueCode(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	now := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

	voucher, err := svc.Create(context.Background(), "", 90, 2048, 8192, "", now)
	require.NoError(t, err)
	assert.Len(t, voucher.Code, 10)
	assert.Equal(t, domain.VoucherStatusUnused, voucher.Status)
	assert.Equal(t, now.Add(90*time.Minute), voucher.ExpiresUTC())
}

func TestCreateExplicitCodeCollisionIsDuplicate(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	now := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), "SUMMER24", 60, 0, 0, "", now)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "summer24", 60, 0, 0, "", now)
	require.Error(t, err, "explicit codes are normalized before the uniqueness check")
	assert.True(t, errors.IsKind(err, errors.KindDuplicate))
}

func TestCreateRejectsNumericCode(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	now := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), "123456", 60, 0, 0, "", now)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestGetAndRevokeAcceptAnyCasing(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	now := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), "SUMMER24", 60, 0, 0, "", now)
	require.NoError(t, err)

	voucher, err := svc.Get(context.Background(), "summer24")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER24", voucher.Code)

	revoked, err := svc.RevokeVoucher(context.Background(), " summer24 ")
	require.NoError(t, err)
	assert.Equal(t, domain.VoucherStatusRevoked, revoked.Status)
}

func TestRedeemCreatesGrantAndMarksVoucher(t *testing.T) {
	svc, vouchers, _ := newVoucherFixture()
	issued := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "SUMMER24", 90, 2048, 8192, "", issued)
	require.NoError(t, err)

	now := time.Date(2026, 7, 14, 10, 3, 17, 0, time.UTC)
	grant, err := svc.Redeem(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF", now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 7, 14, 10, 3, 0, 0, time.UTC), grant.StartUTC)
	assert.Equal(t, time.Date(2026, 7, 14, 11, 33, 0, 0, time.UTC), grant.EndUTC)
	assert.Equal(t, "SUMMER24", grant.VoucherCode)
	assert.Equal(t, 2048, grant.UpKbps)
	assert.Equal(t, 8192, grant.DownKbps)

	stored, err := vouchers.GetByCode(context.Background(), "SUMMER24")
	require.NoError(t, err)
	assert.Equal(t, domain.VoucherStatusActive, stored.Status)
	assert.Equal(t, 1, stored.RedeemedCount)
	assert.Equal(t, now, stored.LastRedeemedUTC)
}

func TestRedeemSameVoucherSameMACTwice(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	issued := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "SUMMER24", 480, 0, 0, "", issued)
	require.NoError(t, err)

	now := issued.Add(30 * time.Minute)
	_, err = svc.Redeem(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF", now)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF", now.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDuplicate))
}

func TestRedeemSameVoucherDifferentMACs(t *testing.T) {
	svc, vouchers, _ := newVoucherFixture()
	issued := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "SUMMER24", 480, 0, 0, "", issued)
	require.NoError(t, err)

	now := issued.Add(30 * time.Minute)
	_, err = svc.Redeem(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF", now)
	require.NoError(t, err)
	_, err = svc.Redeem(context.Background(), "SUMMER24", "11:22:33:44:55:66", now.Add(time.Minute))
	require.NoError(t, err, "a shared voucher serves several devices")

	stored, err := vouchers.GetByCode(context.Background(), "SUMMER24")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RedeemedCount)
}

func TestRedeemExpiredVoucher(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	issued := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "SUMMER24", 60, 0, 0, "", issued)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF", issued.Add(2*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindExpired))
}

func TestRedeemRevokedVoucher(t *testing.T) {
	svc, _, _ := newVoucherFixture()
	issued := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "SUMMER24", 480, 0, 0, "", issued)
	require.NoError(t, err)
	_, err = svc.RevokeVoucher(context.Background(), "SUMMER24")
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), "SUMMER24", "AA:BB:CC:DD:EE:FF", issued.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindRevoked))
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _, _ := newVoucherFixture()

	_, err := svc.Redeem(context.Background(), "NOSUCH1", "AA:BB:CC:DD:EE:FF", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}
