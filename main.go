package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	api "crono-backend/cmd/api"
	activityDelivery "crono-backend/internal/activity/delivery"
	activityRepo "crono-backend/internal/activity/repository"
	"crono-backend/internal/activity/scanner"
	"crono-backend/internal/activity/scheduler"
	activityUsecase "crono-backend/internal/activity/usecase"
	authUsecase "crono-backend/internal/auth/usecase"
	"crono-backend/internal/notification"
	notificationDelivery "crono-backend/internal/notification/delivery"
	notificationRepo "crono-backend/internal/notification/repository"
	"crono-backend/pkg/clock"
	"crono-backend/pkg/config"
	"crono-backend/pkg/database"
	"crono-backend/pkg/fcm"
	"crono-backend/pkg/lifecycle"
	"crono-backend/pkg/logger"
	"crono-backend/pkg/mailer"

	"go.uber.org/zap"
)

type stores struct {
	activities activityRepo.ActivityRepository
	owners     activityRepo.OwnerRepository
	snapshots  activityRepo.SnapshotRepository
	devices    notificationRepo.DeviceTokenRepository
}

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("backend stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Scan.Timezone)
	if err != nil {
		return fmt.Errorf("load SCAN_TIMEZONE %q: %w", cfg.Scan.Timezone, err)
	}
	dispatch, err := scanner.ParseDispatchPolicy(cfg.Scan.DispatchFailure)
	if err != nil {
		return err
	}

	lc := lifecycle.New(cfg.ShutdownTimeout, log)
	clk := clock.System{}

	st, err := openStores(cfg, lc, log)
	if err != nil {
		return err
	}

	// Notification channels: email is primary, push and pubsub fan out
	var channels api.ChannelStatus
	var mailSender notification.MailSender
	if cfg.SMTP.Configured() {
		sender, err := mailer.NewSender(cfg.SMTP)
		if err != nil {
			return err
		}
		mailSender = sender
		channels.Email = true
		log.Info("smtp configured", zap.String("host", cfg.SMTP.Host), zap.Int("port", cfg.SMTP.Port))
	} else {
		log.Warn("smtp not configured, emails will be simulated")
	}

	var secondary []notification.Notifier
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, log)
		if err != nil {
			log.Warn("failed to initialize FCM client, push notifications disabled", zap.Error(err))
		} else {
			secondary = append(secondary, notification.NewPushNotifier(fcmClient, st.devices, log))
			channels.Push = true
		}
	}

	if cfg.GoogleProjectID != "" && cfg.PubSubTopic != "" {
		// Extract short topic name from full resource name if necessary
		topicName := cfg.PubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		publisher, err := notification.NewTopicPublisher(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials)
		if err != nil {
			log.Warn("failed to initialize pubsub publisher, events disabled", zap.Error(err))
		} else {
			secondary = append(secondary, notification.NewPubSubNotifier(publisher, clk.Now, log))
			lc.Register("pubsub", func(context.Context) error { return publisher.Close() })
			channels.PubSub = true
		}
	}

	notifier := notification.NewMulti(log, notification.NewEmailNotifier(mailSender, log), secondary...)

	scan := scanner.New(scanner.Config{
		Grace:            cfg.Scan.Grace,
		Workers:          cfg.Scan.Workers,
		OperationTimeout: cfg.Scan.OperationTimeout,
		Dispatch:         dispatch,
		Location:         loc,
		Policy:           scanner.DefaultPolicy(),
	}, st.activities, st.owners, st.snapshots, notifier, clk, log)

	sched := scheduler.NewScanScheduler(scan, cfg.Scan.Interval, log)
	if cfg.Scan.Enabled {
		sched.Start()
		lc.Register("scheduler", sched.Shutdown)
	} else {
		log.Info("scan scheduler disabled, manual trigger only")
	}

	if cfg.UsingDefaultJWTSecret() {
		log.Warn("JWT_SECRET not set, using the development default")
	}
	tokens := authUsecase.NewTokenUsecase(cfg.JWTSecret)
	activities := activityUsecase.NewActivityUsecase(st.activities, st.snapshots, clk, loc, log)

	server := api.NewServer(cfg, api.Routes{
		Tokens:   tokens,
		Activity: activityDelivery.NewActivityHandler(activities),
		Scan:     activityDelivery.NewScanHandler(sched, cfg.CronSecret, clk, log),
		Devices:  notificationDelivery.NewDeviceHandler(st.devices),
		Settings: api.NewScanSettings(cfg.Scan, channels),
	}, log)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serveErr <- err
			cancel()
		}
	}()
	lc.Register("http", server.Shutdown)

	lc.Wait(ctx)

	var startErr error
	select {
	case startErr = <-serveErr:
	default:
	}
	return errors.Join(startErr, lc.Shutdown(context.Background()))
}

func openStores(cfg *config.Config, lc *lifecycle.Manager, log *zap.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		mem := activityRepo.NewMemoryStore()
		return stores{
			activities: mem,
			owners:     mem,
			snapshots:  mem,
			devices:    notificationRepo.NewMemoryDeviceTokenRepository(),
		}, nil

	case "postgres":
		db, err := database.NewPostgresConnection(cfg)
		if err != nil {
			return stores{}, fmt.Errorf("connect to database: %w", err)
		}
		if err := activityRepo.Migrate(db); err != nil {
			return stores{}, fmt.Errorf("migrate activity tables: %w", err)
		}
		if err := notificationRepo.Migrate(db); err != nil {
			return stores{}, fmt.Errorf("migrate device tokens: %w", err)
		}
		lc.Register("database", func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		return stores{
			activities: activityRepo.NewGormActivityRepository(db),
			owners:     activityRepo.NewGormOwnerRepository(db),
			snapshots:  activityRepo.NewGormSnapshotRepository(db),
			devices:    notificationRepo.NewGormDeviceTokenRepository(db),
		}, nil
	}
	return stores{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
