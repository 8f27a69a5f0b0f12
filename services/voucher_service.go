package services

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/domain"
	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/audit"
	"github.com/guestwifi/guestgate/internal/metrics"
	"github.com/guestwifi/guestgate/internal/timeutil"
)

// Voucher codes are drawn from an unambiguous upper-case alphanumeric
// alphabet.
const voucherCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	defaultVoucherCodeLength = 10
	maxGenerateAttempts      = 5
)

// collisionBackoff spaces out regeneration attempts after a code collision.
var collisionBackoff = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
}

// VoucherService issues and redeems vouchers. Redemption creates an access
// grant and marks the voucher in one transactional unit, so a crash between
// the two cannot leave a redeemed voucher without a grant.
type VoucherService struct {
	vouchers domain.VoucherRepository
	grants   *GrantService
	tx       domain.TxRunner

	codeLength int
	sleep      func(time.Duration) // test seam for collision backoff
}

// NewVoucherService creates a new VoucherService instance.
func NewVoucherService(vouchers domain.VoucherRepository, grants *GrantService, tx domain.TxRunner) *VoucherService {
	return &VoucherService{
		vouchers:   vouchers,
		grants:     grants,
		tx:         tx,
		codeLength: defaultVoucherCodeLength,
		sleep:      time.Sleep,
	}
}

// GenerateCode produces a random voucher code of the given length. A code
// must carry at least one letter, otherwise the classifier would read it as
// a numeric booking code; an all-digit draw is redrawn.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = defaultVoucherCodeLength
	}
	code := make([]byte, length)
	max := big.NewInt(int64(len(voucherCharset)))
	for {
		for i := range code {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			code[i] = voucherCharset[n.Int64()]
		}
		if strings.ContainsAny(string(code), voucherCharset[:26]) {
			return string(code), nil
		}
	}
}

func normalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create issues a new voucher. When code is empty a random one is generated;
// a collision with an existing code triggers regeneration with backoff, and
// persistent collisions surface as a collision error. An explicitly supplied
// code is used once, with a collision reported as a duplicate.
func (s *VoucherService) Create(ctx context.Context, code string, durationMinutes, upKbps, downKbps int, bookingRef string, now time.Time) (*domain.Voucher, error) {
	if durationMinutes <= 0 {
		return nil, errors.NewValidation("voucher duration must be a positive number of minutes")
	}

	explicit := code != ""
	if explicit {
		validation, err := domain.ClassifyCode(code)
		if err != nil {
			return nil, err
		}
		if validation.Type != domain.CodeTypeVoucher {
			return nil, errors.NewValidation("voucher codes must be alphanumeric with at least one letter")
		}
		code = validation.Normalized
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		if !explicit {
			generated, err := GenerateCode(s.codeLength)
			if err != nil {
				return nil, err
			}
			code = generated
		}

		voucher := &domain.Voucher{
			Code:            code,
			CreatedUTC:      now,
			DurationMinutes: durationMinutes,
			UpKbps:          upKbps,
			DownKbps:        downKbps,
			Status:          domain.VoucherStatusUnused,
			BookingRef:      bookingRef,
		}

		err := s.vouchers.Insert(ctx, voucher)
		if err == nil {
			audit.Log("guestgate", "voucher.create", "", voucher.Code, "", true, nil)
			return voucher, nil
		}
		if !errors.IsKind(err, errors.KindDuplicate) {
			return nil, err
		}
		if explicit {
			return nil, err
		}

		log.Debug().Int("attempt", attempt+1).Msg("voucher code collision, regenerating")
		s.sleep(collisionBackoff[attempt])
	}

	return nil, errors.NewCollision("could not generate a unique voucher code")
}

// Get loads a voucher by its code. Codes are stored upper case, so the
// lookup accepts any casing.
func (s *VoucherService) Get(ctx context.Context, code string) (*domain.Voucher, error) {
	return s.vouchers.GetByCode(ctx, normalizeVoucherCode(code))
}

// List returns up to limit vouchers.
func (s *VoucherService) List(ctx context.Context, limit int64) ([]*domain.Voucher, error) {
	return s.vouchers.List(ctx, limit)
}

// Redeem exchanges a voucher code for an access grant on the given MAC. The
// grant window starts now and runs for the voucher's duration. A device
// cannot redeem the same voucher twice while its grant is still live;
// different devices may each redeem the same voucher.
func (s *VoucherService) Redeem(ctx context.Context, code, mac string, now time.Time) (*domain.AccessGrant, error) {
	voucher, err := s.vouchers.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	switch voucher.Status {
	case domain.VoucherStatusRevoked:
		return nil, errors.NewRevoked("voucher has been revoked")
	case domain.VoucherStatusExpired:
		return nil, errors.NewExpired("voucher has expired")
	}
	if now.After(voucher.ExpiresUTC()) {
		return nil, errors.NewExpired("voucher has expired")
	}

	existing, err := s.grants.FindActiveByMAC(ctx, mac, now)
	if err != nil {
		return nil, err
	}
	for _, g := range existing {
		if g.VoucherCode == voucher.Code {
			return nil, errors.NewDuplicate("this device already redeemed the voucher")
		}
	}

	// Duration runs from the floored start, so rounding never clips it.
	start := timeutil.FloorToMinute(now)
	end := start.Add(time.Duration(voucher.DurationMinutes) * time.Minute)

	var grant *domain.AccessGrant
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		grant, err = s.grants.Create(ctx, domain.GrantOrigin{
			VoucherCode:   voucher.Code,
			BookingRef:    voucher.BookingRef,
			UserInputCode: code,
			UpKbps:        voucher.UpKbps,
			DownKbps:      voucher.DownKbps,
		}, mac, start, end, now)
		if err != nil {
			return err
		}

		voucher.Status = domain.VoucherStatusActive
		voucher.RedeemedCount++
		voucher.LastRedeemedUTC = now
		return s.vouchers.Update(ctx, voucher)
	})
	if err != nil {
		return nil, err
	}

	metrics.VoucherRedemptionsTotal.Inc()
	audit.Log("guestgate", "voucher.redeem", mac, voucher.Code, grant.ID, true, nil)
	return grant, nil
}

// RevokeVoucher marks a voucher revoked so it can no longer be redeemed.
// Grants already created from it are untouched; revoke those separately.
func (s *VoucherService) RevokeVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	voucher, err := s.vouchers.GetByCode(ctx, normalizeVoucherCode(code))
	if err != nil {
		return nil, err
	}
	if voucher.Status == domain.VoucherStatusRevoked {
		return voucher, nil
	}

	voucher.Status = domain.VoucherStatusRevoked
	if err := s.vouchers.Update(ctx, voucher); err != nil {
		return nil, err
	}

	audit.Log("guestgate", "voucher.revoke", "", voucher.Code, "", true, nil)
	return voucher, nil
}
