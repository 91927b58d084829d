/*
Package server contains commands running the registry node and working with
its database.
*/
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/pierrec/lz4"
	"github.com/somnia-names/somns/cli/cmdargs"
	"github.com/somnia-names/somns/cli/options"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/encoding/fixedn"
	"github.com/somnia-names/somns/pkg/io"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// DumpRecord is a single name record in the database dump.
type DumpRecord struct {
	Name      string `json:"name"`
	Owner     string `json:"owner"`
	Resolver  string `json:"resolver,omitempty"`
	ExpiresAt uint64 `json:"expiresat"`
	Metadata  string `json:"metadata"`
}

// Dump is the database dump.
type Dump struct {
	Admin   string       `json:"admin"`
	Price   string       `json:"price"`
	Balance string       `json:"balance"`
	Time    time.Time    `json:"time"`
	Records []DumpRecord `json:"records"`
}

// NewCommands returns 'node' and 'db' commands.
func NewCommands() []cli.Command {
	var cfgFlags = options.Node
	var cfgWithOutFlags = append([]cli.Flag{
		cli.StringFlag{
			Name:  "out, o",
			Usage: "output file (stdout if not given)",
		},
		cli.BoolFlag{
			Name:  "expired",
			Usage: "include expired records",
		},
		cli.BoolFlag{
			Name:  "compress, z",
			Usage: "compress the output file with LZ4",
		},
	}, cfgFlags...)
	return []cli.Command{
		{
			Name:      "node",
			Usage:     "start a registry node",
			UsageText: "somns node [--config-path path] [-d] [--config-file file]",
			Action:    startServer,
			Flags:     cfgFlags,
		},
		{
			Name:  "db",
			Usage: "database manipulations",
			Subcommands: []cli.Command{
				{
					Name:      "dump",
					Usage:     "dump name records to a JSON file",
					UsageText: "somns db dump [-o file [-z]] [--expired] [--config-path path] [--config-file file]",
					Action:    dumpDB,
					Flags:     cfgWithOutFlags,
				},
			},
		},
	}
}

func newGraceContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func startServer(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	n, log, closer, exitErr := options.InitNode(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer closer()

	grace, cancel := newGraceContext()
	defer cancel()

	log.Info("registry node started",
		zap.String("admin", address.Uint160ToString(n.Registry.Admin())),
		zap.Uint64("period", n.Registry.Period()))
	if err := n.Run(grace); err != nil {
		return cli.NewExitError(fmt.Errorf("node failed: %w", err), 1)
	}
	return nil
}

func dumpDB(ctx *cli.Context) error {
	if err := cmdargs.EnsureNone(ctx); err != nil {
		return err
	}
	n, _, closer, exitErr := options.InitNode(ctx)
	if exitErr != nil {
		return exitErr
	}
	defer closer()

	var (
		reg     = n.Registry
		now     = time.Now().UTC().Truncate(time.Second)
		expired = ctx.Bool("expired")
		records = make([]DumpRecord, 0)
	)
	price, err := reg.Price()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	balance, err := reg.Balance()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	err = reg.ForEachRecord(func(r *state.NameRecord) bool {
		if !expired && r.IsExpired(uint64(now.Unix())) {
			return true
		}
		dr := DumpRecord{
			Name:      r.Name,
			Owner:     address.Uint160ToString(r.Owner),
			ExpiresAt: r.ExpiresAt,
			Metadata:  r.Metadata,
		}
		if !r.Resolver.IsZero() {
			dr.Resolver = address.Uint160ToString(r.Resolver)
		}
		records = append(records, dr)
		return true
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	b, err := json.MarshalIndent(Dump{
		Admin:   address.Uint160ToString(reg.Admin()),
		Price:   fixedn.AmountToString(price),
		Balance: fixedn.AmountToString(balance),
		Time:    now,
		Records: records,
	}, "", "  ")
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	out := ctx.String("out")
	compress := ctx.Bool("compress")
	if out == "" {
		if compress {
			return cli.NewExitError("compressed dump can only be written to a file", 1)
		}
		fmt.Fprintln(ctx.App.Writer, string(b))
		return nil
	}
	if err := writeDump(out, b, compress); err != nil {
		return cli.NewExitError(fmt.Errorf("can't write dump: %w", err), 1)
	}
	return nil
}

// writeDump writes data to the given file, LZ4-compressed if requested.
func writeDump(out string, data []byte, compress bool) error {
	if err := io.MakeDirForFile(out, "dump"); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if !compress {
		_, err = f.Write(data)
		return err
	}
	zw := lz4.NewWriter(f)
	if _, err = zw.Write(data); err != nil {
		return err
	}
	return zw.Close()
}
