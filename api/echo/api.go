package echo

import (
	goerrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/guestwifi/guestgate/errors"
	"github.com/guestwifi/guestgate/internal/timeutil"
	"github.com/guestwifi/guestgate/mongodb"
	"github.com/guestwifi/guestgate/services"
)

// PortalAPI struct to hold dependencies.
type PortalAPI struct {
	access   *services.AccessService
	grants   *services.GrantService
	vouchers *services.VoucherService
}

// NewPortalAPI initializes the portal API.
func NewPortalAPI(access *services.AccessService, grants *services.GrantService, vouchers *services.VoucherService) *PortalAPI {
	return &PortalAPI{
		access:   access,
		grants:   grants,
		vouchers: vouchers,
	}
}

// RegisterRoutes registers the portal routes.
func (pa *PortalAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/guest/authorize", pa.AuthorizeHandler)
	e.GET("/api/guest/status", pa.StatusHandler)

	e.GET("/api/grants", pa.ListGrantsHandler)
	e.GET("/api/grants/:id", pa.GetGrantHandler)
	e.POST("/api/grants/:id/extend", pa.ExtendGrantHandler)
	e.POST("/api/grants/:id/revoke", pa.RevokeGrantHandler)

	e.POST("/api/vouchers", pa.CreateVoucherHandler)
	e.GET("/api/vouchers", pa.ListVouchersHandler)
	e.GET("/api/vouchers/:code", pa.GetVoucherHandler)
	e.POST("/api/vouchers/:code/revoke", pa.RevokeVoucherHandler)

	e.GET("/healthz", pa.HealthHandler)
}

// AuthorizeRequest is the guest-facing authorization payload.
type AuthorizeRequest struct {
	Code string `json:"code"`
	MAC  string `json:"mac"`
}

// AuthorizeHandler exchanges a guest-supplied code and MAC for an access
// grant and pushes it to the controller.
func (pa *PortalAPI) AuthorizeHandler(c echo.Context) error {
	var req AuthorizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewValidation("malformed request body"))
	}

	grant, err := pa.access.AuthorizeCode(c.Request().Context(), req.Code, req.MAC)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, grant)
}

// StatusHandler reports whether a device is authorized on the controller.
func (pa *PortalAPI) StatusHandler(c echo.Context) error {
	entry, err := pa.access.ControllerStatus(c.Request().Context(), c.QueryParam("mac"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (pa *PortalAPI) ListGrantsHandler(c echo.Context) error {
	grants, err := pa.grants.List(c.Request().Context(), 200, timeutil.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, grants)
}

func (pa *PortalAPI) GetGrantHandler(c echo.Context) error {
	grant, err := pa.grants.Get(c.Request().Context(), c.Param("id"), timeutil.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

// ExtendRequest carries the number of minutes to add to a grant.
type ExtendRequest struct {
	Minutes int `json:"minutes"`
}

func (pa *PortalAPI) ExtendGrantHandler(c echo.Context) error {
	var req ExtendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewValidation("malformed request body"))
	}

	grant, err := pa.access.ExtendGrant(c.Request().Context(), c.Param("id"), req.Minutes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

func (pa *PortalAPI) RevokeGrantHandler(c echo.Context) error {
	grant, err := pa.access.RevokeGrant(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

// CreateVoucherRequest is the admin-facing voucher issue payload. Code is
// optional; when omitted a random one is generated.
type CreateVoucherRequest struct {
	Code            string `json:"code,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	UpKbps          int    `json:"up_kbps,omitempty"`
	DownKbps        int    `json:"down_kbps,omitempty"`
	BookingRef      string `json:"booking_ref,omitempty"`
}

func (pa *PortalAPI) CreateVoucherHandler(c echo.Context) error {
	var req CreateVoucherRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errors.NewValidation("malformed request body"))
	}

	voucher, err := pa.vouchers.Create(c.Request().Context(),
		req.Code, req.DurationMinutes, req.UpKbps, req.DownKbps, req.BookingRef, timeutil.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, voucher)
}

func (pa *PortalAPI) ListVouchersHandler(c echo.Context) error {
	vouchers, err := pa.vouchers.List(c.Request().Context(), 200)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, vouchers)
}

func (pa *PortalAPI) GetVoucherHandler(c echo.Context) error {
	voucher, err := pa.vouchers.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, voucher)
}

func (pa *PortalAPI) RevokeVoucherHandler(c echo.Context) error {
	voucher, err := pa.vouchers.RevokeVoucher(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, voucher)
}

// HealthHandler reports service liveness, including database reachability.
func (pa *PortalAPI) HealthHandler(c echo.Context) error {
	if err := mongodb.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "mongo": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps a portal error to an HTTP response, keeping the typed
// error body intact for the client.
func writeError(c echo.Context, err error) error {
	status := statusFor(errors.KindOf(err))
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		return c.JSON(status, errors.NewValidation("internal error"))
	}

	var pe *errors.PortalError
	if goerrors.As(err, &pe) {
		return c.JSON(status, pe)
	}
	return c.JSON(status, errors.NewValidation(err.Error()))
}

func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindExpired, errors.KindRevoked, errors.KindOutsideWindow:
		return http.StatusGone
	case errors.KindDuplicate, errors.KindConflict, errors.KindCollision:
		return http.StatusConflict
	case errors.KindIntegrationUnavailable:
		return http.StatusServiceUnavailable
	case errors.KindController, errors.KindAuthentication, errors.KindRetryExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
