/*
Package admin contains registry administration commands.
*/
package admin

import (
	"fmt"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/somnia-names/somns/cli/cmdargs"
	"github.com/somnia-names/somns/cli/flags"
	"github.com/somnia-names/somns/cli/options"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/encoding/fixedn"
	"github.com/somnia-names/somns/pkg/registry"
	"github.com/urfave/cli"
)

// Stats is the JSON representation of the registry summary.
type Stats struct {
	Admin   string `json:"admin"`
	Price   string `json:"price"`
	Balance string `json:"balance"`
	Period  uint64 `json:"period"`
	Active  int    `json:"active"`
	Expired int    `json:"expired"`
}

var (
	priceFlag = flags.AmountFlag{
		Name:  "price, p",
		Usage: "new registration and renewal fee, in whole units",
	}
	toFlag = flags.AddressFlag{
		Name:  "to, t",
		Usage: "account to send the balance to",
	}
)

// NewCommands returns 'admin' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "admin",
		Usage: "registry administration",
		Subcommands: []cli.Command{
			{
				Name:      "set-price",
				Usage:     "change the registration and renewal fee",
				UsageText: "somns admin set-price -f <admin> -p <price> [--config-path path]",
				Action:    setPrice,
				Flags:     append([]cli.Flag{options.From, priceFlag}, options.Node...),
			},
			{
				Name:      "withdraw",
				Usage:     "withdraw the whole accumulated balance",
				UsageText: "somns admin withdraw -f <admin> -t <account> [--config-path path]",
				Action:    withdraw,
				Flags:     append([]cli.Flag{options.From, toFlag}, options.Node...),
			},
			{
				Name:      "stats",
				Usage:     "print registry summary as JSON",
				UsageText: "somns admin stats [--config-path path]",
				Action:    stats,
				Flags:     options.Node,
			},
		},
	}}
}

func setPrice(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	if p, ok := ctx.Generic("price").(*flags.Amount); !ok || !p.IsSet {
		return cli.NewExitError("price is not specified", 1)
	}
	ic, exitErr := options.GetCallContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	n, _, closer, exitErr := options.InitNode(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer closer()
	price := flags.AmountFromContext(ctx, "price")
	if err := n.Registry.SetPrice(ic, price); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func withdraw(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	to := flags.AddressFromContext(ctx, "to")
	if !to.IsSet {
		return cli.NewExitError(fmt.Errorf("%w: recipient is not specified", registry.ErrInvalidAddress), 1)
	}
	ic, exitErr := options.GetCallContext(ctx)
	if exitErr != nil {
		return exitErr
	}
	n, _, closer, exitErr := options.InitNode(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer closer()
	amount, err := n.Registry.Withdraw(ic, to.Uint160())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, fixedn.AmountToString(amount))
	return nil
}

func stats(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	n, _, closer, exitErr := options.InitNode(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer closer()
	s, err := n.Registry.GetStats()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	b, err := json.MarshalIndent(Stats{
		Admin:   address.Uint160ToString(n.Registry.Admin()),
		Price:   fixedn.AmountToString(s.Price),
		Balance: fixedn.AmountToString(s.Balance),
		Period:  n.Registry.Period(),
		Active:  s.Active,
		Expired: s.Expired,
	}, "", "  ")
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintln(ctx.App.Writer, string(b))
	return nil
}
