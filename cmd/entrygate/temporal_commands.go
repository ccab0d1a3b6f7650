package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/billions-bounty/entrygate/service/temporal"
)

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconcile",
		Usage:     "Start a reconciliation workflow for a timed-out submission",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "temporal-host",
				Value:   "localhost:7233",
				Usage:   "Temporal server host:port",
				EnvVars: []string{"TEMPORAL_HOST"},
			},
			&cli.StringFlag{
				Name:    "namespace",
				Value:   "default",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
			},
			&cli.StringFlag{
				Name:    "task-queue",
				Value:   "entrygate-reconciliation",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
			},
			&cli.StringFlag{
				Name:     "wallet",
				Usage:    "User wallet the entry belongs to",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "entry-address",
				Usage:    "Derived entry account address",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "nonce",
				Usage:    "Entry nonce",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "amount",
				Usage: "Entry amount in base token units",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("signature is required")
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
			}))

			client, err := temporal.NewClient(
				c.String("temporal-host"),
				c.String("namespace"),
				c.String("task-queue"),
				logger,
			)
			if err != nil {
				return err
			}
			defer client.Close()

			input := temporal.ReconcileSubmissionInput{
				Signature:    c.Args().Get(0),
				UserWallet:   c.String("wallet"),
				EntryAddress: c.String("entry-address"),
				Nonce:        c.Uint64("nonce"),
				Amount:       c.Uint64("amount"),
			}
			if err := client.ScheduleReconciliation(c.Context, input); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "reconciliation started for %s\n", input.Signature)
			return nil
		},
	}
}
