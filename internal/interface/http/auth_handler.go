package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dzakira/authcore/internal/application"
	"github.com/dzakira/authcore/internal/biometric"
	"github.com/dzakira/authcore/pkg/response"
	"github.com/dzakira/authcore/pkg/validation"
)

// AuthHandler exposes the engine's caller-facing operations over HTTP. It
// owns presentation only; every decision is made by the service, and this
// layer maps Results and faults to status codes.
type AuthHandler struct {
	Svc           *application.Service
	Logger        *logrus.Logger
	MaxImageBytes int
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger, maxImageBytes int) *AuthHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = biometric.DefaultMaxImageBytes
	}
	return &AuthHandler{Svc: svc, Logger: logger, MaxImageBytes: maxImageBytes}
}

type registerPasswordRequest struct {
	Username string `json:"username" binding:"required,handle"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type loginPasswordRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// writeResult renders a Result with the status code its outcome implies.
func (h *AuthHandler) writeResult(c *gin.Context, res application.Result) {
	if res.Success {
		response.Success(c, http.StatusOK, res, "authenticated")
		return
	}

	status := http.StatusUnauthorized
	switch res.Reason {
	case application.ReasonDuplicateIdentity:
		status = http.StatusConflict
	case application.ReasonNoFaceDetected, application.ReasonNoEnrolledBiometrics:
		status = http.StatusUnprocessableEntity
	case application.ReasonProviderError:
		status = http.StatusBadGateway
	}

	h.Logger.WithFields(logrus.Fields{
		"reason": res.Reason,
		"ip":     clientIP(c),
	}).Info("authentication attempt failed")
	response.Error[application.Result](c, status, string(res.Reason), nil)
}

// writeFault renders an internal fault: storage unreachable, corrupt row,
// or rejected input that never reached a verifier.
func (h *AuthHandler) writeFault(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biometric.ErrImageTooLarge):
		response.Error[any](c, http.StatusRequestEntityTooLarge, "image too large", nil)
	case errors.Is(err, biometric.ErrBadImage):
		response.Error[any](c, http.StatusUnprocessableEntity, "image could not be decoded", nil)
	case errors.Is(err, application.ErrMissingCredential):
		response.Error[any](c, http.StatusBadRequest, "account needs at least one credential", nil)
	default:
		h.Logger.WithError(err).WithField("ip", clientIP(c)).Error("authentication backend fault")
		response.Error[any](c, http.StatusServiceUnavailable, "authentication temporarily unavailable", nil)
	}
}

func (h *AuthHandler) readImage(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > int64(h.MaxImageBytes) {
		return nil, biometric.ErrImageTooLarge
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(io.LimitReader(f, int64(h.MaxImageBytes)+1))
}

// RegisterPassword POST /api/auth/register/password
func (h *AuthHandler) RegisterPassword(c *gin.Context) {
	var req registerPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.RegisterWithPassword(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeFault(c, err)
		return
	}
	h.writeResult(c, res)
}

// RegisterBiometric POST /api/auth/register/biometric (multipart)
// Fields: username, email, password (optional), image (PNG or JPEG).
func (h *AuthHandler) RegisterBiometric(c *gin.Context) {
	username := c.PostForm("username")
	email := c.PostForm("email")
	password := c.PostForm("password")
	if username == "" || email == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"username": "is required", "email": "is required"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"image": "is required"})
		return
	}
	img, err := h.readImage(file)
	if err != nil {
		h.writeFault(c, err)
		return
	}

	res, err := h.Svc.RegisterWithBiometric(c.Request.Context(), username, email, password, img)
	if err != nil {
		h.writeFault(c, err)
		return
	}
	h.writeResult(c, res)
}

// LoginPassword POST /api/auth/login/password
func (h *AuthHandler) LoginPassword(c *gin.Context) {
	var req loginPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Authenticate(c.Request.Context(), application.PasswordAttempt{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.writeFault(c, err)
		return
	}
	h.writeResult(c, res)
}

// LoginBiometric POST /api/auth/login/biometric (multipart, field: image)
func (h *AuthHandler) LoginBiometric(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"image": "is required"})
		return
	}
	img, err := h.readImage(file)
	if err != nil {
		h.writeFault(c, err)
		return
	}

	res, err := h.Svc.Authenticate(c.Request.Context(), application.BiometricAttempt{Image: img})
	if err != nil {
		h.writeFault(c, err)
		return
	}
	h.writeResult(c, res)
}

// ReplaceBiometric POST /api/auth/biometric/replace (multipart)
// Re-enrolls an existing account, overwriting the stored template.
func (h *AuthHandler) ReplaceBiometric(c *gin.Context) {
	username := c.PostForm("username")
	if username == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"username": "is required"})
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"image": "is required"})
		return
	}
	img, err := h.readImage(file)
	if err != nil {
		h.writeFault(c, err)
		return
	}

	res, err := h.Svc.ReplaceBiometric(c.Request.Context(), username, img)
	if err != nil {
		h.writeFault(c, err)
		return
	}
	h.writeResult(c, res)
}

// FederationStart GET /api/auth/federation/google/start
// Redirects to the provider with a fresh anti-replay state.
func (h *AuthHandler) FederationStart(c *gin.Context) {
	url, err := h.Svc.FederationAuthURL(c.Request.Context())
	if err != nil {
		h.writeFault(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// FederationCallback GET /api/auth/federation/google/callback?code=...&state=...
func (h *AuthHandler) FederationCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		h.writeResult(c, application.Result{Reason: application.ReasonProviderError})
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.Error[any](c, http.StatusBadRequest, "missing code or state", nil)
		return
	}

	res, err := h.Svc.Authenticate(c.Request.Context(), application.FederationAttempt{State: state, Code: code})
	if err != nil {
		h.writeFault(c, err)
		return
	}
	h.writeResult(c, res)
}
