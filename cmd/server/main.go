package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casino/internal/config"
	"casino/internal/handler"
	"casino/internal/infrastructure/cache"
	"casino/internal/infrastructure/database"
	"casino/internal/infrastructure/lock"
	"casino/internal/infrastructure/logger"
	"casino/internal/infrastructure/mq"
	"casino/internal/job"
	"casino/internal/service"
	"casino/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "config file (default $CASINO_CONFIG or config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}

	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		log.WithError(err).Fatal("init id generator")
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer rdb.Close()
	}

	var locker lock.Locker
	switch cfg.Ledger.LockMode {
	case config.LockModeRedis:
		locker = lock.NewRedis(rdb, cfg.Ledger.LockTTL, cfg.Ledger.LockWait, log)
	case config.LockModeNone:
		locker = lock.Noop{}
	default:
		locker = lock.NewLocal()
	}

	var publisher mq.Publisher
	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafka(&cfg.Kafka)
		if err != nil {
			log.WithError(err).Fatal("connect kafka")
		}
		publisher = producer
	} else {
		publisher = mq.NewLogPublisher(log)
	}
	defer publisher.Close()

	engine, err := service.NewEngine(&cfg.Games)
	if err != nil {
		log.WithError(err).Fatal("build game engine")
	}
	ledger := service.NewLedgerService(db, locker, cfg, log)
	history := service.NewHistoryService(db, rdb, log)
	ledger.SetInvalidator(history)
	accounts := service.NewAccountService(db, locker, cfg, log)
	games := service.NewGameService(db, engine, ledger, log)
	if err := games.EnsureCatalog(ctx); err != nil {
		log.WithError(err).Fatal("seed game catalog")
	}

	outboxSender := job.NewOutboxSender(db, publisher, cfg, log)
	go outboxSender.Start(ctx)

	expiryJob := job.NewPendingTransactionExpiryJob(db, accounts, cfg, log)
	go expiryJob.Start(ctx)

	router := handler.SetupRouter(handler.NewHandler(accounts, games, history), cfg.Server.Mode, log)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":      cfg.Server.Port,
			"db":        cfg.Database.Driver,
			"lock_mode": cfg.Ledger.LockMode,
			"kafka":     cfg.Kafka.Enabled,
		}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("serve http")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	cancel()
	outboxSender.Stop()
	expiryJob.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}

	log.Info("server stopped")
}
