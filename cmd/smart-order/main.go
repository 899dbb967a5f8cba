package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tribotech-apps/smart-order-webhook/internal/alert"
	"github.com/tribotech-apps/smart-order-webhook/internal/config"
	"github.com/tribotech-apps/smart-order-webhook/internal/connections/database"
	"github.com/tribotech-apps/smart-order-webhook/internal/connections/rabbitmq"
	"github.com/tribotech-apps/smart-order-webhook/internal/connections/redisconn"
	"github.com/tribotech-apps/smart-order-webhook/internal/docstore"
	"github.com/tribotech-apps/smart-order-webhook/internal/lockreg"
	"github.com/tribotech-apps/smart-order-webhook/internal/logger"
	"github.com/tribotech-apps/smart-order-webhook/internal/notify"
	"github.com/tribotech-apps/smart-order-webhook/internal/orders"
	"github.com/tribotech-apps/smart-order-webhook/internal/repository"
	"github.com/tribotech-apps/smart-order-webhook/internal/workflow"
)

func main() {
	mode := flag.String("mode", "", "order-engine | notification-subscriber")
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	lg := logger.NewWithLevel("bootstrap", cfg.App.LogLevel)
	defer lg.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "order-engine":
		lg.Info("service_started", map[string]any{"service": "order-engine"})
		if err := runEngine(ctx, cfg, lg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "notification-subscriber":
		lg.Info("service_started", map[string]any{"service": "notification-subscriber"})
		if err := runSubscriber(ctx, cfg, lg); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: order-engine | notification-subscriber")
		os.Exit(2)
	}
}

func runEngine(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer rmq.Close()
	if err := notify.DeclareTopology(rmq); err != nil {
		return err
	}

	docs := docstore.NewPostgresStore(db)
	ordersRepo := repository.NewOrdersRepository(docs)
	usersRepo := repository.NewUsersRepository(docs)
	storesRepo := repository.NewStoresRepository(docs)

	sender := notify.NewAMQPSender(rmq, "order-engine")
	lifecycle := workflow.DefaultLifecycle()

	scheduler := alert.NewScheduler(
		alert.RealClock(),
		orders.StageCheck(ordersRepo, lifecycle),
		orders.OverdueNotifier(storesRepo, sender, lg.Named("overdue")),
		lg.Named("alert-scheduler"),
	)

	svc := orders.NewOrderService(
		lockreg.New(),
		ordersRepo, usersRepo, storesRepo,
		scheduler, sender, lifecycle,
		cfg.Engine.DuplicateWindow,
		lg.Named("order-service"),
	)

	// Pending alerts are in-memory only; rebuild them from order state.
	// With multiple engine replicas the distributed lock only suppresses
	// concurrent re-arm within its TTL; a replica booting later still
	// re-arms into its own scheduler, so duplicate staff alerts across
	// replicas remain possible.
	rearm := func() {
		if _, err := svc.RearmAlerts(ctx); err != nil {
			lg.Error("rearm_failed", err, nil)
		}
	}
	if cfg.Redis.Enabled {
		rdb, err := redisconn.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		dlock := lockreg.NewRedisRegistry(rdb, cfg.Engine.LockTTL)
		ran, err := dlock.AcquireOrSkip(ctx, "boot_rearm", func() error {
			rearm()
			return nil
		})
		if err != nil {
			lg.Error("rearm_lock_failed", err, nil)
		} else if !ran {
			lg.Info("rearm_skipped_held_elsewhere", nil)
		}
	} else {
		rearm()
	}

	scheduler.Run(ctx)
	return nil
}

func runSubscriber(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer rmq.Close()

	sub := notify.NewSubscriber(rmq, notify.NewLogDeliverer(lg.Named("deliverer")), lg.Named("subscriber"))
	return sub.Run(ctx)
}
