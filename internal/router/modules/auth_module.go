package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/dzakira/authcore/internal/interface/http"
)

// AuthModule mounts every caller-facing authentication operation.
type AuthModule struct {
	Handler *handlers.AuthHandler
}

func NewAuthModule(h *handlers.AuthHandler) *AuthModule {
	return &AuthModule{Handler: h}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/register/password", m.Handler.RegisterPassword)
	rg.POST("/auth/register/biometric", m.Handler.RegisterBiometric)
	rg.POST("/auth/login/password", m.Handler.LoginPassword)
	rg.POST("/auth/login/biometric", m.Handler.LoginBiometric)
	rg.POST("/auth/biometric/replace", m.Handler.ReplaceBiometric)
	rg.GET("/auth/federation/google/start", m.Handler.FederationStart)
	rg.GET("/auth/federation/google/callback", m.Handler.FederationCallback)
}
