package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/billions-bounty/entrygate/client"
)

const defaultServerURL = "http://localhost:8080"

func entryCommands() *cli.Command {
	return &cli.Command{
		Name:  "entry",
		Usage: "Entry submission commands",
		Subcommands: []*cli.Command{
			entrySubmitCommand(),
			entryNonceCommand(),
		},
	}
}

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Value:   defaultServerURL,
		Usage:   "HTTP server URL",
		EnvVars: []string{"ENTRYGATE_SERVER_URL"},
	}
}

func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server"), nil, logger)
}

func entrySubmitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a lottery entry for a wallet",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.Uint64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Entry amount in base token units",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "bounty",
				Usage: "Bounty tier (1-4); omit for the singleton lottery",
			},
			&cli.Uint64Flag{
				Name:  "nonce-hint",
				Usage: "Expected next nonce (advisory; backend counter wins)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			req := client.EntryRequest{
				UserWallet: c.Args().Get(0),
				Amount:     c.Uint64("amount"),
			}
			if c.IsSet("bounty") {
				bounty := uint8(c.Uint("bounty"))
				req.BountyID = &bounty
			}
			if c.IsSet("nonce-hint") {
				hint := c.Uint64("nonce-hint")
				req.NonceHint = &hint
			}

			result, submitErr := newAPIClient(c).SubmitEntry(c.Context, req)
			if result != nil {
				if err := printJSON(c, result); err != nil {
					return err
				}
			}
			return submitErr
		},
	}
}

func entryNonceCommand() *cli.Command {
	return &cli.Command{
		Name:      "nonce",
		Usage:     "Show a wallet's nonce counter",
		ArgsUsage: "WALLET_ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("wallet address is required")
			}

			info, err := newAPIClient(c).GetNonce(c.Context, c.Args().Get(0))
			if err != nil {
				return err
			}
			return printJSON(c, info)
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			serverFlag(),
		},
		Action: func(c *cli.Context) error {
			if err := newAPIClient(c).Health(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "OK")
			return nil
		},
	}
}

func printJSON(c *cli.Context, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
