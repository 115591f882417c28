package auth

import (
	"net/http"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/modules/httperr"
	"github.com/dmitrymomot/taskflow/pkg/jwt"
	"github.com/dmitrymomot/taskflow/svc/auth"
	"github.com/dmitrymomot/taskflow/svc/otp"
	"github.com/dmitrymomot/taskflow/svc/user"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type EmailRequest struct {
	Email string `query:"email"`
}

type GenerateOTPRequest struct {
	Email  string `query:"email"`
	Name   string `query:"name"`
	Reason string `query:"reason"`
}

type VerifyOTPRequest struct {
	Email string `query:"email"`
	Code  string `query:"code"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type URLResponse struct {
	URL string `json:"url"`
}

type UserResponse struct {
	User *user.User `json:"user"`
}

type GenerateOTPResponse struct {
	Message  string       `json:"message"`
	Delivery otp.Delivery `json:"delivery"`
	Code     string       `json:"code,omitempty"`
}

type VerifyOTPResponse struct {
	Message     string      `json:"message"`
	Purpose     otp.Purpose `json:"purpose"`
	ResetTicket string      `json:"reset_ticket,omitempty"`
}

func (m *Module) signup(ctx handler.Context, req auth.RegisterInput) handler.Response {
	s, err := m.accounts.Register(ctx, req)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(s, handler.WithJSONStatus(http.StatusCreated))
}

func (m *Module) signin(ctx handler.Context, req SignInRequest) handler.Response {
	s, err := m.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(s)
}

func (m *Module) googleURL(ctx handler.Context, _ struct{}) handler.Response {
	url, err := m.accounts.GoogleAuthURL(ctx)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(URLResponse{URL: url})
}

func (m *Module) google(ctx handler.Context, req GoogleRequest) handler.Response {
	s, err := m.accounts.FederatedAuthenticate(ctx, req.Code, req.State)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(s)
}

func (m *Module) findByEmail(ctx handler.Context, req EmailRequest) handler.Response {
	u, err := m.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(UserResponse{User: u})
}

func (m *Module) generateOTP(ctx handler.Context, req GenerateOTPRequest) handler.Response {
	res, err := m.codes.GenerateCode(ctx, req.Email, req.Name, otp.Purpose(req.Reason))
	if err != nil {
		return httperr.Fail(err, rules...)
	}

	msg := "verification code sent"
	switch res.Delivery {
	case otp.DeliveryPending:
		msg = "verification code is being sent"
	case otp.DeliveryFailed:
		msg = "verification code issued but the email could not be sent"
	}
	return handler.JSON(GenerateOTPResponse{Message: msg, Delivery: res.Delivery, Code: res.Code})
}

func (m *Module) verifyOTP(ctx handler.Context, req VerifyOTPRequest) handler.Response {
	res, err := m.codes.VerifyCode(ctx, req.Email, req.Code)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(VerifyOTPResponse{
		Message:     "code verified",
		Purpose:     res.Purpose,
		ResetTicket: res.ResetTicket,
	})
}

func (m *Module) resetPassword(ctx handler.Context, req auth.ResetInput) handler.Response {
	if err := m.accounts.ResetPassword(ctx, req); err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(MessageResponse{Message: "password updated"})
}

func (m *Module) refresh(ctx handler.Context, _ struct{}) handler.Response {
	raw, _ := jwt.TokenFromContext(ctx)
	s, err := m.accounts.Refresh(ctx, raw)
	if err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(s)
}

func (m *Module) logout(ctx handler.Context, _ struct{}) handler.Response {
	raw, _ := jwt.TokenFromContext(ctx)
	if err := m.accounts.Logout(ctx, raw); err != nil {
		return httperr.Fail(err, rules...)
	}
	return handler.JSON(MessageResponse{Message: "signed out"})
}
