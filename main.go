package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cppla/ephembbs/config"
	"github.com/cppla/ephembbs/models"
	"github.com/cppla/ephembbs/routes"
	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase(models.All()...)

	opts := []services.Option{services.WithLogger(utils.Logger.Named("engine"))}
	if rc := utils.GetRedis(); rc != nil {
		opts = append(opts,
			services.WithStatusCache(utils.NewRedisCache(rc, "ephembbs:")),
			services.WithPublisher(utils.NewRedisPublisher(rc)),
		)
	}
	eng := services.New(db, engineConfig(cfg), opts...)

	r := routes.SetupRouter(db, eng)

	// Background expiry sweep; reads filter by expiry regardless
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeperDone := utils.StartExpirySweeper(sweepCtx, eng, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err := utils.GraceServer(":"+cfg.AppPort, r, stopSweep)
	stopSweep()
	<-sweeperDone
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

func engineConfig(cfg config.AppConfig) services.Config {
	return services.Config{
		FlagThreshold:   cfg.FlagThreshold,
		DefaultTTL:      time.Duration(cfg.DefaultTTLHours) * time.Hour,
		MaxTTL:          time.Duration(cfg.MaxTTLHours) * time.Hour,
		MaxBodyLength:   cfg.MaxBodyLength,
		SweepOnRead:     cfg.SweepOnRead,
		DefaultMute:     time.Duration(cfg.DefaultMuteMinutes) * time.Minute,
		PopupMaxReplies: cfg.PopupMaxReplies,
		PopupMaxMinutes: cfg.PopupMaxMinutes,
		StatusCacheTTL:  time.Duration(cfg.StatusCacheSeconds) * time.Second,
	}
}
