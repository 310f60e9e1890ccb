package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountbiz "github.com/astronomyk/CrowdSky/internal/account/biz"
	accountdata "github.com/astronomyk/CrowdSky/internal/account/data"
	accountservice "github.com/astronomyk/CrowdSky/internal/account/service"
	"github.com/astronomyk/CrowdSky/internal/auth"
	"github.com/astronomyk/CrowdSky/internal/conf"
	"github.com/astronomyk/CrowdSky/internal/data"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/server"
	"github.com/astronomyk/CrowdSky/internal/stacking/biz"
	stackingdata "github.com/astronomyk/CrowdSky/internal/stacking/data"
	"github.com/astronomyk/CrowdSky/internal/stacking/service"
	"go.uber.org/zap"
)

var configFile = flag.String("config", "config.yaml", "config file path")

func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(&config.Log); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Repositories
	accountRepo := accountdata.NewAccountRepo(d.DB)
	sessionRepo := stackingdata.NewSessionRepo(d.DB)
	fileRepo := stackingdata.NewFileRepo(d.DB)
	jobRepo := stackingdata.NewJobRepo(d.DB)
	frameRepo := stackingdata.NewFrameRepo(d.DB)
	txManager := stackingdata.NewTxManager(d.DB)

	// Use cases
	sessionUseCase := biz.NewSessionUseCase(
		sessionRepo,
		fileRepo,
		jobRepo,
		txManager,
		d.FrameStore,
		config.Upload.MaxFileSize,
		log,
	)
	dispatchUseCase := biz.NewDispatchUseCase(jobRepo, txManager, log)
	jobUseCase := biz.NewJobUseCase(
		jobRepo,
		fileRepo,
		frameRepo,
		sessionRepo,
		txManager,
		d.FrameStore,
		d.Archive,
		d.Cache,
		log,
	)
	sweeper := biz.NewSweeper(
		sessionRepo,
		fileRepo,
		jobRepo,
		txManager,
		d.FrameStore,
		biz.SweepConfig{
			SessionExpiry: config.Sweeper.SessionExpiry,
			LeftoverGrace: config.Sweeper.LeftoverGrace,
		},
		log,
	)

	// Services
	jwtManager := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer)
	accountUseCase := accountbiz.NewAccountUseCase(accountRepo, jwtManager, log)
	accountService := accountservice.NewAccountService(accountUseCase, log)
	sessionService := service.NewSessionService(sessionUseCase, log)
	stackService := service.NewStackService(jobUseCase, log)
	workerService := service.NewWorkerService(dispatchUseCase, jobUseCase, sweeper, log)

	httpServer := server.NewHTTPServer(config, log, jwtManager, accountService, sessionService, stackService, workerService)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	if config.Sweeper.Interval > 0 {
		go sweeper.Start(sweepCtx, config.Sweeper.Interval)
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	stopSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
