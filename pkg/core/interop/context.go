/*
Package interop contains the invocation context delivered to the registry
by the ledger: the authenticated caller and the attached payment.
*/
package interop

import (
	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/pkg/util"
)

// Context represents a single call made to the registry or the resolver.
// The ledger is responsible for caller authentication.
type Context struct {
	// Caller is the account the call is made by.
	Caller util.Uint160
	// Value is the payment attached to the call, nil means no payment.
	Value *uint256.Int
}

// NewContext returns a new call context for the given caller and payment.
func NewContext(caller util.Uint160, value *uint256.Int) *Context {
	return &Context{
		Caller: caller,
		Value:  value,
	}
}

// PaidValue returns the attached payment, it's never nil.
func (ic *Context) PaidValue() *uint256.Int {
	if ic.Value == nil {
		return new(uint256.Int)
	}
	return ic.Value
}
