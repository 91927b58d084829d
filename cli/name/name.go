/*
Package name contains commands managing registered names and their resolver
entries.
*/
package name

import (
	"fmt"
	"time"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/somnia-names/somns/cli/cmdargs"
	"github.com/somnia-names/somns/cli/flags"
	"github.com/somnia-names/somns/cli/options"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/node"
	"github.com/somnia-names/somns/pkg/registry"
	"github.com/somnia-names/somns/pkg/resolver"
	"github.com/somnia-names/somns/pkg/util"
	"github.com/urfave/cli"
)

// Info is the JSON representation of the name state.
type Info struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Owner     string `json:"owner,omitempty"`
	Resolver  string `json:"resolver,omitempty"`
	ExpiresAt uint64 `json:"expiresat"`
	Expires   string `json:"expires,omitempty"`
	Metadata  string `json:"metadata"`
	Address   string `json:"address,omitempty"`
}

var (
	nameFlag = cli.StringFlag{
		Name:  "name, n",
		Usage: "name to operate on",
	}
	resolverFlag = flags.AddressFlag{
		Name:  "resolver, r",
		Usage: "resolver of the name",
	}
	metadataFlag = cli.StringFlag{
		Name:  "metadata, m",
		Usage: "name metadata",
	}
	toFlag = flags.AddressFlag{
		Name:  "to, t",
		Usage: "new owner of the name",
	}
	addrFlag = flags.AddressFlag{
		Name:  "address",
		Usage: "address the name resolves to (unsets it if not specified)",
	}
	ownerFlag = flags.AddressFlag{
		Name:  "owner, o",
		Usage: "account to list names of",
	}
)

func withCaller(fs ...cli.Flag) []cli.Flag {
	res := append([]cli.Flag{}, options.Node...)
	res = append(res, nameFlag, options.From)
	return append(res, fs...)
}

// NewCommands returns 'name' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:  "name",
		Usage: "register and manage names",
		Subcommands: []cli.Command{
			{
				Name:      "register",
				Usage:     "register a name for the caller",
				UsageText: "somns name register -f <account> -a <fee> -n <name> [-r <resolver>] [-m <metadata>] [--config-path path]",
				Action:    register,
				Flags:     withCaller(options.Amount, resolverFlag, metadataFlag),
			},
			{
				Name:      "renew",
				Usage:     "extend name expiration by one registration period",
				UsageText: "somns name renew -f <owner> -a <fee> -n <name> [--config-path path]",
				Action:    renew,
				Flags:     withCaller(options.Amount),
			},
			{
				Name:      "transfer",
				Usage:     "transfer a name to another account",
				UsageText: "somns name transfer -f <owner> -n <name> -t <account> [--config-path path]",
				Action:    transfer,
				Flags:     withCaller(toFlag),
			},
			{
				Name:      "set-resolver",
				Usage:     "change the resolver of a name",
				UsageText: "somns name set-resolver -f <owner> -n <name> [-r <resolver>] [--config-path path]",
				Action:    setResolver,
				Flags:     withCaller(resolverFlag),
			},
			{
				Name:      "set-metadata",
				Usage:     "change the metadata of a name",
				UsageText: "somns name set-metadata -f <owner> -n <name> -m <metadata> [--config-path path]",
				Action:    setMetadata,
				Flags:     withCaller(metadataFlag),
			},
			{
				Name:      "set-address",
				Usage:     "set the address a name resolves to in the built-in resolver",
				UsageText: "somns name set-address -f <owner> -n <name> [--address <address>] [--config-path path]",
				Action:    setAddress,
				Flags:     withCaller(addrFlag),
			},
			{
				Name:      "info",
				Usage:     "print name state as JSON",
				UsageText: "somns name info -n <name> [--config-path path]",
				Action:    info,
				Flags:     append([]cli.Flag{nameFlag}, options.Node...),
			},
			{
				Name:      "resolve",
				Usage:     "print the address a name resolves to",
				UsageText: "somns name resolve -n <name> [--config-path path]",
				Action:    resolve,
				Flags:     append([]cli.Flag{nameFlag}, options.Node...),
			},
			{
				Name:      "list",
				Usage:     "list names owned by an account",
				UsageText: "somns name list -o <account> [--config-path path]",
				Action:    list,
				Flags:     append([]cli.Flag{ownerFlag}, options.Node...),
			},
		},
	}}
}

func getName(ctx *cli.Context) (string, error) {
	name := ctx.String("name")
	if name == "" {
		return "", cli.NewExitError("name is not specified", 1)
	}
	return name, nil
}

// invoke runs a mutating registry call made by the --from account.
func invoke(ctx *cli.Context, f func(n *node.Node, name string, caller *interop.Context) error) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	name, err := getName(ctx)
	if err != nil {
		return err
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
	if err := f(n, name, ic); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func register(ctx *cli.Context) error {
	return invoke(ctx, func(n *node.Node, name string, c *interop.Context) error {
		var res = resolver.Hash
		if r := flags.AddressFromContext(ctx, "resolver"); r.IsSet {
			res = r.Uint160()
		}
		err := n.Registry.Register(c, name, res, ctx.String("metadata"))
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, time.Unix(int64(n.Registry.ExpiresAt(name)), 0).UTC().Format(time.RFC3339))
		return nil
	})
}

func renew(ctx *cli.Context) error {
	return invoke(ctx, func(n *node.Node, name string, c *interop.Context) error {
		err := n.Registry.Renew(c, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, time.Unix(int64(n.Registry.ExpiresAt(name)), 0).UTC().Format(time.RFC3339))
		return nil
	})
}

func transfer(ctx *cli.Context) error {
	return invoke(ctx, func(n *node.Node, name string, c *interop.Context) error {
		to := flags.AddressFromContext(ctx, "to")
		if !to.IsSet {
			return fmt.Errorf("%w: new owner is not specified", registry.ErrInvalidAddress)
		}
		return n.Registry.Transfer(c, name, to.Uint160())
	})
}

func setResolver(ctx *cli.Context) error {
	return invoke(ctx, func(n *node.Node, name string, c *interop.Context) error {
		var res util.Uint160
		if r := flags.AddressFromContext(ctx, "resolver"); r.IsSet {
			res = r.Uint160()
		}
		return n.Registry.SetResolver(c, name, res)
	})
}

func setMetadata(ctx *cli.Context) error {
	return invoke(ctx, func(n *node.Node, name string, c *interop.Context) error {
		return n.Registry.SetMetadata(c, name, ctx.String("metadata"))
	})
}

func setAddress(ctx *cli.Context) error {
	return invoke(ctx, func(n *node.Node, name string, c *interop.Context) error {
		var addr util.Uint160
		if a := flags.AddressFromContext(ctx, "address"); a.IsSet {
			addr = a.Uint160()
		}
		return n.Resolver.SetAddr(c, name, addr)
	})
}

// view runs a read-only command.
func view(ctx *cli.Context, f func(n *node.Node) error) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	n, _, closer, exitErr := options.InitNode(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer closer()
	if err := f(n); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

// GetInfo returns the state of the name. Unregistered names have only Name
// and Status set.
func GetInfo(n *node.Node, name string) Info {
	var (
		reg  = n.Registry
		info = Info{
			Name:   name,
			Status: reg.StatusOf(name).String(),
		}
	)
	rec, err := reg.GetRecord(name)
	if err != nil {
		return info
	}
	info.Owner = address.Uint160ToString(rec.Owner)
	if !rec.Resolver.IsZero() {
		info.Resolver = address.Uint160ToString(rec.Resolver)
	}
	info.ExpiresAt = rec.ExpiresAt
	info.Expires = time.Unix(int64(rec.ExpiresAt), 0).UTC().Format(time.RFC3339)
	info.Metadata = rec.Metadata
	if addr := n.Resolver.Resolve(name); !addr.IsZero() {
		info.Address = address.Uint160ToString(addr)
	}
	return info
}

func info(ctx *cli.Context) error {
	name, err := getName(ctx)
	if err != nil {
		return err
	}
	return view(ctx, func(n *node.Node) error {
		b, err := json.MarshalIndent(GetInfo(n, name), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, string(b))
		return nil
	})
}

func resolve(ctx *cli.Context) error {
	name, err := getName(ctx)
	if err != nil {
		return err
	}
	return view(ctx, func(n *node.Node) error {
		addr := n.Resolver.Resolve(name)
		if addr.IsZero() {
			return fmt.Errorf("%q doesn't resolve to any address", name)
		}
		fmt.Fprintln(ctx.App.Writer, address.Uint160ToString(addr))
		return nil
	})
}

func list(ctx *cli.Context) error {
	owner := flags.AddressFromContext(ctx, "owner")
	if !owner.IsSet {
		return cli.NewExitError("owner is not specified", 1)
	}
	return view(ctx, func(n *node.Node) error {
		for _, name := range n.Registry.GetNamesOfOwner(owner.Uint160()) {
			status := n.Registry.StatusOf(name)
			if status == state.Expired {
				fmt.Fprintf(ctx.App.Writer, "%s (%s)\n", name, status)
			} else {
				fmt.Fprintln(ctx.App.Writer, name)
			}
		}
		return nil
	})
}
