package ens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	goens "github.com/wealdtech/go-ens/v3"

	"Ensign/internal/core/profiles"
)

// Config holds configuration for the ENS registry adapter.
type Config struct {
	// Timeout bounds every individual registry call. go-ens calls do not
	// take a context, so each call runs in its own goroutine and the caller
	// is released when the deadline passes.
	Timeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// ensRegistry implements profiles.Registry against ENS via go-ens.
type ensRegistry struct {
	backend bind.ContractBackend
	timeout time.Duration
}

// NewRegistry creates a profiles.Registry backed by an Ethereum node,
// typically an *ethclient.Client.
func NewRegistry(backend bind.ContractBackend, config Config) profiles.Registry {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &ensRegistry{
		backend: backend,
		timeout: config.Timeout,
	}
}

// ReverseLookup resolves an address to its primary ENS name.
func (r *ensRegistry) ReverseLookup(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", &profiles.InvalidIdentifierError{Identifier: address, Reason: "not a hex address"}
	}
	addr := common.HexToAddress(address)

	return r.call(ctx, func() (string, error) {
		name, err := goens.ReverseResolve(r.backend, addr)
		if err != nil {
			if isAbsence(err) {
				return "", nil
			}
			return "", fmt.Errorf("reverse lookup of %s failed: %w", address, err)
		}
		return name, nil
	})
}

// ForwardLookup resolves a canonical ENS name to a lowercase address.
func (r *ensRegistry) ForwardLookup(ctx context.Context, name string) (string, error) {
	return r.call(ctx, func() (string, error) {
		addr, err := goens.Resolve(r.backend, name)
		if err != nil {
			if isAbsence(err) {
				return "", nil
			}
			return "", fmt.Errorf("forward lookup of %s failed: %w", name, err)
		}
		if addr == (common.Address{}) {
			return "", nil
		}
		return strings.ToLower(addr.Hex()), nil
	})
}

// Avatar returns the avatar record of name. ENS stores avatars as the
// "avatar" text record.
func (r *ensRegistry) Avatar(ctx context.Context, name string) (string, error) {
	return r.Text(ctx, name, "avatar")
}

// Text returns an arbitrary text record of name.
func (r *ensRegistry) Text(ctx context.Context, name, key string) (string, error) {
	return r.call(ctx, func() (string, error) {
		resolver, err := goens.NewResolver(r.backend, name)
		if err != nil {
			if isAbsence(err) {
				return "", nil
			}
			return "", fmt.Errorf("failed to obtain resolver for %s: %w", name, err)
		}
		value, err := resolver.Text(key)
		if err != nil {
			if isAbsence(err) {
				return "", nil
			}
			return "", fmt.Errorf("text record %s of %s failed: %w", key, name, err)
		}
		return value, nil
	})
}

// NormalizeName canonicalizes an ENS name (UTS-46 case folding plus full
// identifier normalization).
func (r *ensRegistry) NormalizeName(name string) (string, error) {
	normalized, err := goens.NormaliseDomain(name)
	if err != nil {
		return "", &profiles.InvalidIdentifierError{Identifier: name, Reason: err.Error()}
	}
	return normalized, nil
}

// call runs fn under the adapter's per-call timeout. On timeout the
// goroutine running fn is abandoned; its eventual result is discarded.
func (r *ensRegistry) call(ctx context.Context, fn func() (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		value, err := fn()
		ch <- result{value: value, err: err}
	}()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Absence markers used by go-ens for names and addresses that simply have
// no record. These are normal "none" results, not failures.
var absenceMarkers = []string{
	"unregistered name",
	"no resolver",
	"not a resolver",
	"no resolution",
	"no address",
}

func isAbsence(err error) bool {
	msg := err.Error()
	for _, marker := range absenceMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
