package profiles

import "context"

// Registry is the capability contract against the naming registry.
// Name-based calls expect a name already canonicalized with NormalizeName.
// Absence of a record is the ("", nil) result; a non-nil error always means
// the registry could not be consulted, never "no such record".
type Registry interface {
	// ReverseLookup resolves an address to its primary ENS name.
	ReverseLookup(ctx context.Context, address string) (string, error)

	// ForwardLookup resolves a canonical ENS name to an address.
	ForwardLookup(ctx context.Context, name string) (string, error)

	// Avatar returns the avatar record of a canonical ENS name.
	Avatar(ctx context.Context, name string) (string, error)

	// Text returns an arbitrary text record (e.g. "com.twitter") of a
	// canonical ENS name.
	Text(ctx context.Context, name, key string) (string, error)

	// NormalizeName canonicalizes a name per the registry's normalization
	// algorithm (UTS-46 case folding, not plain ASCII lowercasing).
	NormalizeName(name string) (string, error)
}

// ProfileRepository defines the interface for profile persistence.
type ProfileRepository interface {
	// GetByAddress returns the profile for a lowercase address.
	// Returns ErrProfileNotFound when no row exists.
	GetByAddress(ctx context.Context, address string) (*Profile, error)

	// GetByName returns the profile currently holding a canonical name.
	// Returns ErrProfileNotFound when no row holds it.
	GetByName(ctx context.Context, name string) (*Profile, error)

	// Upsert creates or fully replaces the row keyed by profile.Address.
	Upsert(ctx context.Context, profile *Profile) error

	// ClearNameExcept removes the name claim from every row holding name
	// other than keepAddress. Paired with Upsert this realizes a name
	// transfer; the pair is not atomic, so a crash between the two calls
	// leaves the name transiently unclaimed until the next refresh.
	ClearNameExcept(ctx context.Context, name, keepAddress string) error
}

// NameClaimer is an optional repository capability: stores that support
// multi-row transactions can reconcile a name transfer atomically. The
// service prefers this path when available.
type NameClaimer interface {
	// UpsertClaimingName clears the profile's name from all other rows and
	// upserts the profile in a single transaction.
	UpsertClaimingName(ctx context.Context, profile *Profile) error
}

// ProfileService defines the interface for the resolution-and-caching core.
type ProfileService interface {
	// ResolveIdentifier classifies an arbitrary identifier (address or ENS
	// name) and returns the best available information without refreshing.
	ResolveIdentifier(ctx context.Context, raw string) (*Resolution, error)

	// FetchProfile is a pure read by address or canonical name. It never
	// calls the registry and never writes.
	FetchProfile(ctx context.Context, identifier string) (*Profile, error)

	// UpdateProfile force-refreshes the row for address, resolving the
	// name (from nameHint or a reverse lookup) and all metadata records.
	// Callers re-fetch to observe the result.
	UpdateProfile(ctx context.Context, address, nameHint string) error

	// IsFresh reports whether a refresh timestamp is within the TTL.
	IsFresh(updatedAt int64) bool
}
