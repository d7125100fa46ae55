package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/senyabanana/forge-service/internal/router/config"
	"github.com/senyabanana/forge-service/internal/services"
)

var cmdPayouts = &cli.Command{
	Name:  "payouts",
	Usage: "Release payouts whose hold period has elapsed and exit",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "batch",
			Value: 50,
			Usage: "maximum payouts per run",
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := config.LoadConfig(cctx.String("config"))
		if err != nil {
			return fmt.Errorf("cannot load config: %w", err)
		}
		logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

		app, err := newApplication(cctx.Context, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		scheduler := services.NewPayoutScheduler(app.payments, cfg.PayoutSweepInterval, logger)
		scheduler.BatchSize = cctx.Int("batch")
		released, err := scheduler.Sweep(cctx.Context)
		if err != nil {
			return err
		}
		logger.Printf("released %d payouts", released)
		return nil
	},
}
