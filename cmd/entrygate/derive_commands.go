package main

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	solsvc "github.com/billions-bounty/entrygate/service/solana"
)

func deriveCommands() *cli.Command {
	return &cli.Command{
		Name:  "derive",
		Usage: "Offline address derivation utilities",
		Subcommands: []*cli.Command{
			deriveLotteryCommand(),
			deriveEntryCommand(),
			deriveTokenAccountCommand(),
		},
	}
}

func programFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "program",
		Aliases:  []string{"p"},
		Usage:    "Lottery program ID",
		EnvVars:  []string{"LOTTERY_PROGRAM_ID"},
		Required: true,
	}
}

func deriveLotteryCommand() *cli.Command {
	return &cli.Command{
		Name:  "lottery",
		Usage: "Derive the lottery state address",
		Flags: []cli.Flag{
			programFlag(),
			&cli.UintFlag{
				Name:  "bounty",
				Usage: "Bounty tier (1-4); omit for the singleton lottery",
			},
		},
		Action: func(c *cli.Context) error {
			programID, err := solana.PublicKeyFromBase58(c.String("program"))
			if err != nil {
				return fmt.Errorf("invalid program id: %w", err)
			}

			var addr solana.PublicKey
			var bump uint8
			if c.IsSet("bounty") {
				addr, bump, err = solsvc.DeriveLotteryAddressForBounty(programID, uint8(c.Uint("bounty")))
			} else {
				addr, bump, err = solsvc.DeriveLotteryAddress(programID)
			}
			if err != nil {
				return err
			}

			return printDerivation(c, addr, bump)
		},
	}
}

func deriveEntryCommand() *cli.Command {
	return &cli.Command{
		Name:      "entry",
		Usage:     "Derive an entry address for a payer and nonce",
		ArgsUsage: "PAYER_ADDRESS",
		Flags: []cli.Flag{
			programFlag(),
			&cli.Uint64Flag{
				Name:     "nonce",
				Aliases:  []string{"n"},
				Usage:    "Entry nonce",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "bounty",
				Usage: "Bounty tier (1-4); omit for the singleton lottery",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("payer address is required")
			}
			programID, err := solana.PublicKeyFromBase58(c.String("program"))
			if err != nil {
				return fmt.Errorf("invalid program id: %w", err)
			}
			payer, err := solana.PublicKeyFromBase58(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid payer address: %w", err)
			}

			var lottery solana.PublicKey
			if c.IsSet("bounty") {
				lottery, _, err = solsvc.DeriveLotteryAddressForBounty(programID, uint8(c.Uint("bounty")))
			} else {
				lottery, _, err = solsvc.DeriveLotteryAddress(programID)
			}
			if err != nil {
				return err
			}

			addr, bump, err := solsvc.DeriveEntryAddress(programID, lottery, payer, c.Uint64("nonce"))
			if err != nil {
				return err
			}

			return printDerivation(c, addr, bump)
		},
	}
}

func deriveTokenAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "token-account",
		Aliases:   []string{"ata"},
		Usage:     "Derive the associated token account for an owner and mint",
		ArgsUsage: "OWNER_ADDRESS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mint",
				Aliases:  []string{"m"},
				Usage:    "Token mint address",
				EnvVars:  []string{"USDC_MINT_ADDRESS"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("owner address is required")
			}
			owner, err := solana.PublicKeyFromBase58(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("invalid owner address: %w", err)
			}
			mint, err := solana.PublicKeyFromBase58(c.String("mint"))
			if err != nil {
				return fmt.Errorf("invalid mint address: %w", err)
			}

			addr, bump, err := solsvc.DeriveTokenAccountAddress(owner, mint)
			if err != nil {
				return err
			}

			return printDerivation(c, addr, bump)
		},
	}
}

func printDerivation(c *cli.Context, addr solana.PublicKey, bump uint8) error {
	out, err := json.MarshalIndent(map[string]any{
		"address": addr.String(),
		"bump":    bump,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
