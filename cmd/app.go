package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/senyabanana/forge-service/internal/db"
	"github.com/senyabanana/forge-service/internal/gateway"
	"github.com/senyabanana/forge-service/internal/notify"
	"github.com/senyabanana/forge-service/internal/render"
	"github.com/senyabanana/forge-service/internal/repository"
	"github.com/senyabanana/forge-service/internal/router/config"
	"github.com/senyabanana/forge-service/internal/services"
)

// application - собранные зависимости сервиса.
type application struct {
	cfg       config.Config
	logger    *log.Logger
	pool      *pgxpool.Pool
	natsConn  *nats.Conn
	events    *services.EventService
	bids      *services.BidService
	contracts *services.ContractService
	payments  *services.PaymentService
}

// newApplication подключается к Postgres и NATS и собирает сервисы.
// Без NATS уведомления пишутся в лог.
func newApplication(ctx context.Context, cfg config.Config, logger *log.Logger) (*application, error) {
	pool, err := db.InitDb(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	app := &application{cfg: cfg, logger: logger, pool: pool}

	var notifier services.Notifier = &notify.LogNotifier{Logger: logger}
	if cfg.NatsURL != "" {
		conn, err := nats.Connect(cfg.NatsURL, nats.Name("forge-service"))
		if err != nil {
			logger.Printf("nats unavailable, notifications go to log: %v", err)
		} else {
			app.natsConn = conn
			notifier = notify.NewNatsNotifier(conn, logger)
		}
	}

	eventRepo := repository.NewPostgresEventRepository(pool)
	bidRepo := repository.NewPostgresBidRepository(pool)
	vendorRepo := repository.NewPostgresVendorRepository(pool)
	contractRepo := repository.NewPostgresContractRepository(pool)
	paymentRepo := repository.NewPostgresPaymentRepository(pool)
	renderer := render.NewRenderer(repository.NewPostgresArtifactStore(pool))
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)

	app.events = services.NewEventService(eventRepo, bidRepo, notifier, logger)
	app.bids = services.NewBidService(app.events, bidRepo, vendorRepo, notifier, logger)
	app.contracts = services.NewContractService(eventRepo, bidRepo, vendorRepo, vendorRepo, contractRepo, renderer, notifier, logger)

	app.payments = services.NewPaymentService(contractRepo, vendorRepo, paymentRepo, gw, notifier, logger)
	app.payments.KeySecret = cfg.GatewayKeySecret
	app.payments.WebhookSecret = cfg.GatewayWebhookSecret
	if cfg.GatewayCurrency != "" {
		app.payments.Currency = cfg.GatewayCurrency
	}
	if cfg.PayoutHold > 0 {
		app.payments.PayoutHold = cfg.PayoutHold
	}
	return app, nil
}

func (a *application) Close() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Printf("nats drain: %v", err)
		}
	}
	a.pool.Close()
}
