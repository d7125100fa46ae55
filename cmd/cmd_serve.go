package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/senyabanana/forge-service/internal/handlers"
	"github.com/senyabanana/forge-service/internal/idempotency"
	"github.com/senyabanana/forge-service/internal/router"
	"github.com/senyabanana/forge-service/internal/router/config"
	"github.com/senyabanana/forge-service/internal/services"
	"github.com/senyabanana/forge-service/internal/utils"
)

var cmdServe = &cli.Command{
	Name:  "serve",
	Usage: "Run HTTP API and payout scheduler",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "skip-migrations",
			Usage: "do not apply migrations on start",
		},
		&cli.BoolFlag{
			Name:  "no-scheduler",
			Usage: "do not run the payout scheduler in this process",
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := config.LoadConfig(cctx.String("config"))
		if err != nil {
			return fmt.Errorf("cannot load config: %w", err)
		}
		if !cctx.Bool("skip-migrations") {
			if err := runDBMigration(cfg.MigrationURL, cfg.PostgresConn); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

		app, err := newApplication(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		var idem *idempotency.Middleware
		store, err := idempotency.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.IdempotencyTTL)
		if err != nil {
			logger.Printf("redis unavailable, idempotency keys are ignored: %v", err)
		} else {
			defer store.Close()
			idem = &idempotency.Middleware{Store: store, ActorHeader: utils.ActorIDHeader, Logger: logger}
		}

		routes := router.InitRoutes(
			handlers.NewEventHandler(app.events, logger, cfg.RequestTimeout),
			handlers.NewBidHandler(app.bids, logger, cfg.RequestTimeout),
			handlers.NewContractHandler(app.contracts, logger, cfg.RequestTimeout),
			handlers.NewPaymentHandler(app.payments, logger, cfg.RequestTimeout),
			idem,
		)
		server := &http.Server{
			Addr:              cfg.ServerAddress,
			Handler:           routes,
			ReadHeaderTimeout: 10 * time.Second,
		}

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			log.Printf("server is listening on %s...", cfg.ServerAddress)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		if !cctx.Bool("no-scheduler") {
			scheduler := services.NewPayoutScheduler(app.payments, cfg.PayoutSweepInterval, logger)
			group.Go(func() error {
				return scheduler.Run(gctx)
			})
		}
		return group.Wait()
	},
}
