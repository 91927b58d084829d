package flags

import (
	"flag"
	"strings"

	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/pkg/encoding/fixedn"
	"github.com/urfave/cli"
)

// Amount is a wrapper for a native value amount with flag.Value methods.
// It's set in whole units with up to fixedn.Precision decimals.
type Amount struct {
	IsSet bool
	Value uint256.Int
}

// AmountFlag is a flag with type Amount.
type AmountFlag struct {
	Name  string
	Usage string
	Value Amount
}

var (
	_ flag.Value = (*Amount)(nil)
	_ cli.Flag   = AmountFlag{}
)

// String implements the fmt.Stringer interface.
func (a Amount) String() string {
	return fixedn.AmountToString(&a.Value)
}

// Set implements the flag.Value interface.
func (a *Amount) Set(s string) error {
	v, err := fixedn.AmountFromString(s)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	a.IsSet = true
	a.Value.Set(v)
	return nil
}

// String returns a readable representation of this value
// (for usage defaults).
func (f AmountFlag) String() string {
	var names []string
	eachName(f.Name, func(name string) {
		names = append(names, getNameHelp(name))
	})

	return strings.Join(names, ", ") + "\t" + f.Usage
}

// GetName returns the name of the flag.
func (f AmountFlag) GetName() string {
	return f.Name
}

// Apply populates the flag given the flag set and environment.
// Ignores errors.
func (f AmountFlag) Apply(set *flag.FlagSet) {
	eachName(f.Name, func(name string) {
		set.Var(&f.Value, name, f.Usage)
	})
}

// AmountFromContext returns a parsed amount for the given flag name, it's
// zero if the flag is not set.
func AmountFromContext(ctx *cli.Context, name string) *uint256.Int {
	a, ok := ctx.Generic(name).(*Amount)
	if !ok || a == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(&a.Value)
}
