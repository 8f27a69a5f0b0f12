package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics are created eagerly so instrumented code paths work before (and
// without) registration; Register wires them into a registry at startup.
var (
	GrantsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guestgate_grants_created_total",
		Help: "Total number of access grants created.",
	})
	VoucherRedemptionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guestgate_voucher_redemptions_total",
		Help: "Total number of successful voucher redemptions.",
	})
	BookingGrantsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guestgate_booking_grants_total",
		Help: "Total number of grants created from booking codes.",
	})
	GrantsRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guestgate_grants_revoked_total",
		Help: "Total number of grants revoked.",
	})
	ControllerErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guestgate_controller_errors_total",
		Help: "Total number of failed controller operations.",
	})
	RetryOperationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guestgate_retry_operations_dropped_total",
		Help: "Total number of retry operations dropped after exhausting attempts.",
	})
	RetryQueueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "guestgate_retry_queue_depth",
		Help: "Current number of operations waiting in the retry queue.",
	})
)

// Register registers the custom metrics with the given registry. It should
// be called once at application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	for name, c := range map[string]prometheus.Collector{
		"GrantsCreatedTotal":      GrantsCreatedTotal,
		"VoucherRedemptionsTotal": VoucherRedemptionsTotal,
		"BookingGrantsTotal":      BookingGrantsTotal,
		"GrantsRevokedTotal":      GrantsRevokedTotal,
		"ControllerErrorsTotal":   ControllerErrorsTotal,
		"RetryOperationsDropped":  RetryOperationsDropped,
		"RetryQueueDepthGauge":    RetryQueueDepthGauge,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
