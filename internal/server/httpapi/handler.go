package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

// UserService is the auth core as seen by the transport.
type UserService interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.DoneResponse, error)
	Signin(ctx context.Context, in services.SigninInput, client services.ClientInfo) (*services.SigninResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	ForgetPassword(ctx context.Context, email string) (*services.DoneResponse, error)
	ResetPassword(ctx context.Context, token string, in services.ResetPasswordInput) (*services.DoneResponse, error)
}

type TokenVerifier interface {
	Verify(token string, kind auth.Kind) (*auth.Payload, error)
}

type signupRequest struct {
	Email                string `json:"email" binding:"required,email"`
	Name                 string `json:"name" binding:"required,max=50"`
	Password             string `json:"password" binding:"required,strongpassword"`
	PasswordConfirmation string `json:"passwordConfirmation" binding:"required"`
}

type signinRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password             string `json:"password" binding:"required,strongpassword"`
	PasswordConfirmation string `json:"passwordConfirmation" binding:"required"`
}

type signinResponse struct {
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type UserHandler struct {
	users        UserService
	refreshTTL   time.Duration
	cookieSecure bool
	logger       logging.Logger
}

func NewUserHandler(users UserService, refreshTTL time.Duration, cookieSecure bool, logger logging.Logger) *UserHandler {
	return &UserHandler{users: users, refreshTTL: refreshTTL, cookieSecure: cookieSecure, logger: logger}
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.users.Signup(c.Request.Context(), services.SignupInput{
		Email:                req.Email,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// Login returns the access token in the body and the refresh token only in
// an HttpOnly cookie.
func (h *UserHandler) Login(c *gin.Context) {
	var req signinRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.users.Signin(c.Request.Context(),
		services.SigninInput{Email: req.Email, Password: req.Password},
		services.ClientInfo{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.SetCookie(common.RefreshTokenCookieName, res.RefreshToken,
		int(h.refreshTTL/time.Second), "/", "", h.cookieSecure, true)

	c.JSON(http.StatusCreated, signinResponse{AccessToken: res.AccessToken, Email: res.Email})
}

func (h *UserHandler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)

	access, err := h.users.RefreshToken(c.Request.Context(), token)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, refreshResponse{AccessToken: access})
}

func (h *UserHandler) Profile(c *gin.Context) {
	profile, ok := ProfileFrom(c)
	if !ok {
		RespondError(c, common.ErrorUnauthorized)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) ForgetPassword(c *gin.Context) {
	var req forgetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.users.ForgetPassword(c.Request.Context(), req.Email)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.users.ResetPassword(c.Request.Context(), c.Param("token"), services.ResetPasswordInput{
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Health reports whether the credential store is reachable.
func Health(check func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
