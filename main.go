package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/bullionwatch/pmalert/internal/check"
)

func main() {
	checkFlags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "log the intended post instead of publishing",
		},
		&cli.BoolFlag{
			Name:  "test-oos",
			Usage: "self-test mode: validate the publish pipeline on an out-of-stock marker",
		},
		&cli.BoolFlag{
			Name:  "post-status-updates",
			Usage: "also post when nothing is in stock",
		},
		&cli.StringFlag{
			Name:  "har",
			Usage: "recorded traffic capture to mine for a search payload",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "browser engine: webkit, firefox, chrome, or chromium",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "only log errors",
		},
	}

	app := &cli.App{
		Name:   "pmalert",
		Usage:  "check the Costco precious-metals page and publish stock alerts",
		Flags:  checkFlags,
		Action: check.CheckAction,
		Commands: []*cli.Command{
			{
				Name:   "check",
				Usage:  "run one inspection pass (the default)",
				Flags:  checkFlags,
				Action: check.CheckAction,
			},
			{
				Name:   "selftest",
				Usage:  "validate the publish pipeline against an out-of-stock marker",
				Flags:  checkFlags,
				Action: check.SelfTestAction,
			},
			{
				Name:  "history",
				Usage: "print recent inspection runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "number of runs to show",
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "only log errors",
					},
				},
				Action: check.HistoryAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			if msg := exitErr.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(check.ExitFetchError)
	}
}
