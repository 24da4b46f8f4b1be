package router

import (
	"github.com/dzakira/authcore/internal/application"
	"github.com/dzakira/authcore/internal/biometric"
	"github.com/dzakira/authcore/internal/container"
	"github.com/dzakira/authcore/internal/federation"
	pginfra "github.com/dzakira/authcore/internal/infrastructure/postgres"
	handlers "github.com/dzakira/authcore/internal/interface/http"
	"github.com/dzakira/authcore/internal/router/modules"
)

func buildAuthModule() *modules.AuthModule {
	cfg := container.GetConfig()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	encoder := biometric.NewHTTPEncoder(cfg.EncoderURL, cfg.EncoderTimeout)
	states := federation.NewRedisStateStore(container.GetRedis(), cfg.FederationStateTTL)
	resolver := federation.NewResolver(
		cfg.GoogleProvider(),
		repo,
		states,
		cfg.FederationTimeout,
		container.GetLogger(),
	)

	service := application.NewService(
		repo,
		encoder,
		resolver,
		container.GetLogger(),
		cfg.BiometricThreshold,
		cfg.MaxImageBytes,
	)

	handler := handlers.NewAuthHandler(service, container.GetLogger(), cfg.MaxImageBytes)
	return modules.NewAuthModule(handler)
}

// InitModules initializes all application modules and registers them with
// the router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(buildAuthModule())
}
