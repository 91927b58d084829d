package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/encoding/fixedn"
	"github.com/somnia-names/somns/pkg/util"
)

// RegistryConfiguration represents the name registry parameters.
type RegistryConfiguration struct {
	// Admin is the account allowed to change the price and withdraw fees.
	// It's an address or a 0x-prefixed hex script hash.
	Admin string `yaml:"Admin"`
	// Price is the initial registration and renewal fee in native units,
	// decimals are allowed. It's only used when the registry is created,
	// later changes are made with setPrice.
	Price string `yaml:"Price"`
	// RegistrationPeriod is added to the expiration time on every
	// registration and renewal.
	RegistrationPeriod time.Duration `yaml:"RegistrationPeriod"`
}

// Validate checks RegistryConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (r *RegistryConfiguration) Validate() error {
	if r.RegistrationPeriod < time.Second {
		return fmt.Errorf("RegistrationPeriod is too small: %s", r.RegistrationPeriod)
	}
	if r.Admin == "" {
		return errors.New("registry Admin is not set")
	}
	if _, err := r.AdminAccount(); err != nil {
		return fmt.Errorf("invalid registry Admin: %w", err)
	}
	if _, err := r.InitialPrice(); err != nil {
		return fmt.Errorf("invalid registry Price: %w", err)
	}
	return nil
}

// AdminAccount returns the admin account identifier.
func (r *RegistryConfiguration) AdminAccount() (util.Uint160, error) {
	u, err := address.ParseAccount(r.Admin)
	if err != nil {
		return u, err
	}
	if u.IsZero() {
		return u, errors.New("zero account")
	}
	return u, nil
}

// InitialPrice returns the configured price in the smallest value units.
func (r *RegistryConfiguration) InitialPrice() (*uint256.Int, error) {
	return fixedn.AmountFromString(r.Price)
}

// PeriodSeconds returns the registration period in seconds.
func (r *RegistryConfiguration) PeriodSeconds() uint64 {
	return uint64(r.RegistrationPeriod / time.Second)
}
