package auth

import (
	"net/http"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/svc/auth"
	"github.com/dmitrymomot/taskflow/svc/otp"
	"github.com/dmitrymomot/taskflow/svc/user"
)

var rules = []httperr.Rule{
	httperr.On(user.ErrEmailTaken, handler.ErrConflict),
	httperr.On(user.ErrNotFound, handler.ErrNotFound),
	httperr.On(auth.ErrInvalidCredentials, httperr.BadRequest("invalid_credentials")),
	httperr.On(auth.ErrFederatedOnly, httperr.BadRequest("federated_only")),
	httperr.On(auth.ErrInvalidTicket, handler.NewHTTPError(http.StatusUnauthorized, "invalid_ticket", "")),
	httperr.On(auth.ErrUnauthorized, handler.ErrUnauthorized),
	httperr.On(auth.ErrFederatedDisabled, handler.NewHTTPError(http.StatusNotFound, "federated_disabled", "")),
	httperr.On(auth.ErrInvalidState, httperr.BadRequest("invalid_state")),
	httperr.On(auth.ErrInvalidOAuthCode, httperr.BadRequest("invalid_oauth_code")),
	httperr.On(auth.ErrUnverifiedEmail, httperr.BadRequest("unverified_email")),
	httperr.On(otp.ErrInvalidCode, httperr.BadRequest("invalid_code")),
	httperr.On(otp.ErrTooManyRequests, handler.ErrTooManyRequests),
}
