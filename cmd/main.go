package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "forge-service",
		Usage: "event commissioning marketplace: bids, contracts, payments and payouts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: ".",
				Usage: "directory with app.env",
			},
		},
		Commands: []*cli.Command{
			cmdServe,
			cmdMigrate,
			cmdPayouts,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
