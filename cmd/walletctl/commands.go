package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/congo-pay/tokenledger/internal/domain"
	"github.com/congo-pay/tokenledger/internal/keys"
	"github.com/congo-pay/tokenledger/internal/ledger"
	"github.com/congo-pay/tokenledger/internal/payments"
	"github.com/congo-pay/tokenledger/internal/pricing"
	"github.com/congo-pay/tokenledger/internal/remote"
	"github.com/congo-pay/tokenledger/internal/wallet"
)

type env struct {
	ledger    *ledger.Ledger
	payments  *payments.Service
	wallets   *wallet.Service
	decryptor *keys.Decryptor
	close     func()
}

type envOpener func(ctx context.Context) (*env, error)

func newApp(open envOpener) *cli.App {
	run := func(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			e, err := open(c.Context)
			if err != nil {
				return err
			}
			if e.close != nil {
				defer e.close()
			}
			return fn(c, e)
		}
	}

	amountFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "amount", Aliases: []string{"a"}, Usage: "decimal amount", Required: true}
	}
	keyFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "idempotency-key", Aliases: []string{"k"}, Usage: "dedupe retries of the same operation"}
	}

	return &cli.App{
		Name:  "walletctl",
		Usage: "inspect and operate the token ledger",
		Commands: []*cli.Command{
			{
				Name:   "balances",
				Usage:  "list token balances and the portfolio value",
				Action: run(balancesCmd),
			},
			{
				Name:   "transactions",
				Usage:  "list transactions, newest first",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "token", Usage: "only transactions of this token id or symbol"}},
				Action: run(transactionsCmd),
			},
			{
				Name:  "quote",
				Usage: "price a swap without executing it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					amountFlag(),
					&cli.StringFlag{Name: "slippage", Value: pricing.DefaultSlippage.String(), Usage: "tolerance in percent"},
				},
				Action: run(quoteCmd),
			},
			{
				Name:  "send",
				Usage: "debit a token to a counterparty address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Required: true},
					&cli.StringFlag{Name: "to", Required: true, Usage: "0x counterparty address"},
					amountFlag(), keyFlag(),
				},
				Action: run(transferCmd(domain.KindSend, "to")),
			},
			{
				Name:  "receive",
				Usage: "credit a token from a counterparty",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Required: true},
					&cli.StringFlag{Name: "from", Usage: "0x counterparty address"},
					amountFlag(), keyFlag(),
				},
				Action: run(transferCmd(domain.KindReceive, "from")),
			},
			{
				Name:  "swap",
				Usage: "swap one token for another and submit it to the backend",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true},
					&cli.StringFlag{Name: "to", Required: true},
					amountFlag(), keyFlag(),
				},
				Action: run(swapCmd),
			},
			{
				Name:   "sync",
				Usage:  "refresh balances from the backend",
				Action: run(syncCmd),
			},
			{
				Name:  "wallet",
				Usage: "manage the wallet",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create the wallet and print its secrets",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label"},
							&cli.StringFlag{Name: "pin", Usage: "PIN required to reveal the key later"},
						},
						Action: run(walletCreateCmd),
					},
					{
						Name:   "reveal",
						Usage:  "decrypt and print the private key and mnemonic",
						Flags:  []cli.Flag{&cli.StringFlag{Name: "pin"}},
						Action: run(walletRevealCmd),
					},
					{
						Name:   "show",
						Usage:  "print the wallet address",
						Action: run(walletShowCmd),
					},
				},
			},
			{
				Name:      "decrypt",
				Usage:     "decrypt an ivHex:ciphertextHex payload with the configured key",
				ArgsUsage: "<payload>",
				Action:    run(decryptCmd),
			},
		},
	}
}

func balancesCmd(c *cli.Context, e *env) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tBALANCE\tPRICE\tVALUE_USD")
	for _, tok := range e.ledger.Balances() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tok.Symbol, tok.Balance, tok.UnitPrice.StringFixed(2), tok.ValueUSD.StringFixed(2))
	}
	fmt.Fprintf(w, "TOTAL\t\t\t%s\n", e.ledger.TotalValueUSD().StringFixed(2))
	return w.Flush()
}

func transactionsCmd(c *cli.Context, e *env) error {
	txs := e.ledger.Transactions()
	if token := c.String("token"); token != "" {
		tok, err := resolveToken(e.ledger, token)
		if err != nil {
			return err
		}
		txs = e.ledger.TransactionsFor(tok.ID)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSUMMARY")
	for _, tx := range txs {
		symbol := tx.TokenID
		if tok, err := e.ledger.Balance(tx.TokenID); err == nil {
			symbol = tok.Symbol
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tx.ID, tx.Kind, tx.Status, tx.Describe(symbol))
	}
	return w.Flush()
}

func quoteCmd(c *cli.Context, e *env) error {
	from, to, amount, err := swapArgs(c, e.ledger)
	if err != nil {
		return err
	}
	slippage, err := decimal.NewFromString(c.String("slippage"))
	if err != nil {
		return fmt.Errorf("invalid slippage: %w", err)
	}
	q, err := e.payments.Quote(from.ID, to.ID, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s -> %s %s (fee %s, rate %s, minimum %s)\n",
		q.AmountIn, from.Symbol, q.AmountOut.StringFixed(6), to.Symbol, q.Fee, q.Rate, q.MinimumReceived(slippage).StringFixed(6))
	return nil
}

func transferCmd(direction domain.Kind, counterpartyFlag string) func(*cli.Context, *env) error {
	return func(c *cli.Context, e *env) error {
		tok, err := resolveToken(e.ledger, c.String("token"))
		if err != nil {
			return err
		}
		amount, err := domain.ParseAmount(c.String("amount"))
		if err != nil {
			return err
		}
		tx, err := e.payments.ApplyTransfer(c.Context, payments.TransferInput{
			TokenID:        tok.ID,
			Amount:         amount,
			Direction:      direction,
			Counterparty:   c.String(counterpartyFlag),
			IdempotencyKey: c.String("idempotency-key"),
		})
		return printTx(c, tx, tok.Symbol, err)
	}
}

func swapCmd(c *cli.Context, e *env) error {
	from, to, amount, err := swapArgs(c, e.ledger)
	if err != nil {
		return err
	}
	address, err := e.wallets.Address(c.Context)
	if err != nil {
		return fmt.Errorf("create a wallet before swapping: %w", err)
	}
	tx, err := e.payments.ExecuteSwap(c.Context, payments.SwapInput{
		FromTokenID:    from.ID,
		ToTokenID:      to.ID,
		AmountIn:       amount,
		IdempotencyKey: c.String("idempotency-key"),
	}, address)
	if errors.Is(err, remote.ErrNetwork) && tx.ID != "" {
		fmt.Fprintf(c.App.Writer, "%s recorded locally, backend submission failed: %v\n", tx.ID, err)
		return nil
	}
	return printTx(c, tx, from.Symbol, err)
}

func syncCmd(c *cli.Context, e *env) error {
	address, err := e.wallets.Address(c.Context)
	if err != nil {
		return fmt.Errorf("create a wallet before syncing: %w", err)
	}
	report, err := e.payments.Refresh(c.Context, address)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "updated %d, kept %d, rejected %d\n", len(report.Updated), len(report.Kept), len(report.Rejected))
	return nil
}

func walletCreateCmd(c *cli.Context, e *env) error {
	created, err := e.wallets.Create(c.Context, wallet.CreateInput{Label: c.String("label"), RevealPIN: c.String("pin")})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "address:     %s\nprivate key: %s\nmnemonic:    %s\n",
		created.Profile.Address, created.Secret.PrivateKey, created.Secret.Mnemonic)
	return nil
}

func walletRevealCmd(c *cli.Context, e *env) error {
	secret, err := e.wallets.Reveal(c.Context, c.String("pin"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "private key: %s\nmnemonic:    %s\n", secret.PrivateKey, secret.Mnemonic)
	return nil
}

func walletShowCmd(c *cli.Context, e *env) error {
	p, err := e.wallets.Get(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\n", p.Address, p.DisplayName)
	return nil
}

func decryptCmd(c *cli.Context, e *env) error {
	payload := strings.TrimSpace(c.Args().First())
	if payload == "" {
		return errors.New("payload argument is required")
	}
	plain, err := e.decryptor.Decrypt(c.Context, payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, plain)
	return nil
}

func printTx(c *cli.Context, tx domain.Transaction, symbol string, err error) error {
	if errors.Is(err, payments.ErrDuplicateTransaction) {
		fmt.Fprintf(c.App.Writer, "%s already recorded: %s\n", tx.ID, tx.Describe(symbol))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s: %s\n", tx.ID, tx.Status, tx.Describe(symbol))
	return nil
}

func swapArgs(c *cli.Context, l *ledger.Ledger) (from, to domain.TokenBalance, amount decimal.Decimal, err error) {
	if from, err = resolveToken(l, c.String("from")); err != nil {
		return
	}
	if to, err = resolveToken(l, c.String("to")); err != nil {
		return
	}
	amount, err = domain.ParseAmount(c.String("amount"))
	return
}

// resolveToken accepts a token id or a case-insensitive symbol.
func resolveToken(l *ledger.Ledger, ref string) (domain.TokenBalance, error) {
	tok, ok := lo.Find(l.Balances(), func(t domain.TokenBalance) bool {
		return t.ID == ref || strings.EqualFold(t.Symbol, ref)
	})
	if !ok {
		return domain.TokenBalance{}, fmt.Errorf("%w: %s", ledger.ErrTokenNotFound, ref)
	}
	return tok, nil
}
