// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down the worker, in-flight notifications, and DB
// connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if resetWorker != nil {
		resetWorker.Stop()
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	if deps.PickupHubMongoClient != nil {
		logger.Info("disconnecting PickupHub MongoDB client")
		if err := deps.PickupHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
