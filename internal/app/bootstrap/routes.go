// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/pickuphub/internal/app/core/binding"
	"github.com/dalemusser/pickuphub/internal/app/core/lifecycle"
	"github.com/dalemusser/pickuphub/internal/app/core/notify"
	"github.com/dalemusser/pickuphub/internal/app/core/registry"
	adminfeature "github.com/dalemusser/pickuphub/internal/app/features/admin"
	authapifeature "github.com/dalemusser/pickuphub/internal/app/features/authapi"
	guardiansfeature "github.com/dalemusser/pickuphub/internal/app/features/guardians"
	healthfeature "github.com/dalemusser/pickuphub/internal/app/features/health"
	livefeature "github.com/dalemusser/pickuphub/internal/app/features/live"
	pickupsfeature "github.com/dalemusser/pickuphub/internal/app/features/pickups"
	studentsfeature "github.com/dalemusser/pickuphub/internal/app/features/students"
	classstore "github.com/dalemusser/pickuphub/internal/app/store/classes"
	institutionstore "github.com/dalemusser/pickuphub/internal/app/store/institutions"
	linkstore "github.com/dalemusser/pickuphub/internal/app/store/links"
	pickupstore "github.com/dalemusser/pickuphub/internal/app/store/pickups"
	studentstore "github.com/dalemusser/pickuphub/internal/app/store/students"
	userstore "github.com/dalemusser/pickuphub/internal/app/store/users"
	"github.com/dalemusser/pickuphub/internal/app/system/auth"
	"github.com/dalemusser/pickuphub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// resetWorker is started in BuildHandler and stopped in Shutdown.
var resetWorker *workers.DailyReset

// dispatcher is drained in Shutdown so in-flight notices finish.
var dispatcher *notify.Dispatcher

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It builds the stores, the core
// services on top of them, and mounts one feature router per API area.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.PickupHubMongoDatabase

	institutions := institutionstore.New(db)
	classes := classstore.New(db)
	users := userstore.New(db)
	students := studentstore.New(db)
	links := linkstore.New(db)
	pickups := pickupstore.New(db)

	tokens, err := auth.NewTokenManager(appCfg.TokenKey, appCfg.TokenIssuer, appCfg.TokenTTL, logger)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}

	// Live delivery plane: the registry tracks connections, the dispatcher
	// fans lifecycle changes out to bound guardians, falling back to the
	// log when a guardian has no live connection.
	reg := registry.New(logger)
	notifier := notify.NewFallbackNotifier(
		notify.NewLiveNotifier(reg),
		notify.NewLogNotifier(logger),
	)
	dispatcher = notify.NewDispatcher(notifier, links, users, logger)

	lifecycleSvc := lifecycle.NewService(students, pickups, links, dispatcher, reg, logger)
	bindingSvc := binding.NewService(deps.PickupHubMongoClient, institutions, users, students, links, logger)

	// The daily reset fires at the configured local hour; the same
	// operation is exposed to admins as a manual trigger.
	loc, err := time.LoadLocation(appCfg.ResetTimeZone)
	if err != nil {
		return nil, err
	}
	resetWorker = workers.NewDailyReset(lifecycleSvc, logger, appCfg.ResetHour, loc)
	resetWorker.Start()

	r := chi.NewRouter()

	// Global auth middleware: parses a bearer token (header or ?token= for
	// websocket clients) into the request context when present.
	r.Use(tokens.LoadPrincipal)

	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.PickupHubMongoClient, logger)))
	r.Mount("/auth", authapifeature.Routes(authapifeature.NewHandler(users, bindingSvc, tokens, logger)))
	r.Mount("/admin", adminfeature.Routes(adminfeature.NewHandler(institutions, classes, users, lifecycleSvc, logger)))
	r.Mount("/students", studentsfeature.Routes(studentsfeature.NewHandler(deps.PickupHubMongoClient, students, classes, users, links, pickups, lifecycleSvc, logger)))
	r.Mount("/guardians", guardiansfeature.Routes(guardiansfeature.NewHandler(bindingSvc, users, logger)))
	r.Mount("/pickups", pickupsfeature.Routes(pickupsfeature.NewHandler(lifecycleSvc, pickups, logger)))
	r.Mount("/live", livefeature.Routes(livefeature.NewHandler(reg, pickups, links, appCfg.WSAllowedOrigins, logger)))

	return r, nil
}
