// Package handler provides typed HTTP handlers for the JSON API.
//
// Handlers are plain generic functions that receive a bound request value and
// return a Response:
//
//	type SigninRequest struct {
//		Email    string `json:"email"`
//		Password string `json:"password"`
//	}
//
//	func (h *Handler) signin(ctx handler.Context, req SigninRequest) handler.Response {
//		res, err := h.auth.Authenticate(ctx, req.Email, req.Password)
//		if err != nil {
//			return handler.JSONError(mapError(err))
//		}
//		return handler.JSON(res)
//	}
//
//	r.Post("/signin", handler.Wrap(h.signin,
//		handler.WithBinders[handler.Context, SigninRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, SigninRequest](errHandler),
//	))
//
// Every body follows the same envelope: {"data": ...} on success and
// {"error": {"code", "message", "details"}} on failure. HTTPError carries the
// status code and a machine readable key, ValidationError carries per field
// messages and always maps to 422 Unprocessable Entity.
//
// Decorators wrap a HandlerFunc for cross-cutting concerns such as
// authentication or rate limiting. The first decorator is the outermost one.
package handler
