package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Ethereum account form: 0x followed by exactly 40 hex digits.
// Anything else is treated as a naming identity.
var addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// DefaultTTL is how long a cached profile is served without a refresh.
const DefaultTTL = 30 * 24 * time.Hour

// Config holds configuration for the profile service.
type Config struct {
	// TTL is the freshness window for cached profiles. Zero means DefaultTTL.
	TTL time.Duration

	// CoalesceRefreshes collapses concurrent UpdateProfile calls for the
	// same address into one registry round-trip. Off by default: without it
	// N concurrent requests for one stale address each perform their own
	// refresh and the store's last writer wins.
	CoalesceRefreshes bool

	// Clock overrides the time source, for tests.
	Clock func() time.Time

	Logger *slog.Logger
}

type profileService struct {
	repo     ProfileRepository
	registry Registry
	ttl      time.Duration
	clock    func() time.Time
	log      *slog.Logger
	flight   *singleflight.Group // nil unless CoalesceRefreshes
}

// NewProfileService creates a new profile service. The repository and
// registry are constructed by the caller and injected here; the service
// holds no other state.
func NewProfileService(repo ProfileRepository, registry Registry, config Config) ProfileService {
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &profileService{
		repo:     repo,
		registry: registry,
		ttl:      config.TTL,
		clock:    config.Clock,
		log:      config.Logger,
	}
	if config.CoalesceRefreshes {
		s.flight = &singleflight.Group{}
	}
	return s
}

// ResolveIdentifier classifies raw as an address or ENS name and returns the
// best available information without refreshing anything.
//
// Address-path registry failures propagate. Name-path failures are collapsed
// into the unresolved result, indistinguishable from an unregistered name to
// the caller; the service logs and counts them so outages are still visible.
func (s *profileService) ResolveIdentifier(ctx context.Context, raw string) (*Resolution, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Resolution{}, nil
	}

	if addressRegex.MatchString(raw) {
		address := strings.ToLower(raw)

		profile, err := s.repo.GetByAddress(ctx, address)
		switch {
		case err == nil:
			cacheLookups.WithLabelValues("address", "hit").Inc()
			return &Resolution{
				Address: address,
				Name:    profile.Name,
				Profile: profile,
				Fresh:   s.IsFresh(profile.UpdatedAt),
			}, nil
		case errors.Is(err, ErrProfileNotFound):
			cacheLookups.WithLabelValues("address", "miss").Inc()
		default:
			return nil, fmt.Errorf("failed to look up profile by address: %w", err)
		}

		// Best-effort name hint for the caller's subsequent refresh.
		name, err := s.registry.ReverseLookup(ctx, address)
		if err != nil {
			return nil, &ResolutionError{Identifier: address, Err: err}
		}
		return &Resolution{Address: address, Name: name}, nil
	}

	name, err := s.registry.NormalizeName(raw)
	if err != nil {
		return &Resolution{}, nil
	}

	profile, err := s.repo.GetByName(ctx, name)
	switch {
	case err == nil:
		cacheLookups.WithLabelValues("name", "hit").Inc()
		return &Resolution{
			Address: profile.Address,
			Name:    name,
			Profile: profile,
			Fresh:   s.IsFresh(profile.UpdatedAt),
		}, nil
	case errors.Is(err, ErrProfileNotFound):
		cacheLookups.WithLabelValues("name", "miss").Inc()
	default:
		s.log.Warn("store lookup failed on name path, reporting unresolved",
			"name", name, "error", err)
		resolutionsCoerced.Inc()
		return &Resolution{}, nil
	}

	address, err := s.registry.ForwardLookup(ctx, name)
	if err != nil {
		s.log.Warn("forward lookup failed, reporting unresolved",
			"name", name, "error", err)
		resolutionsCoerced.Inc()
		return &Resolution{}, nil
	}
	if address == "" {
		return &Resolution{}, nil
	}

	return &Resolution{Address: strings.ToLower(address), Name: name}, nil
}

// FetchProfile is a pure store read by address or canonical name.
func (s *profileService) FetchProfile(ctx context.Context, identifier string) (*Profile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrProfileNotFound
	}

	if addressRegex.MatchString(identifier) {
		return s.repo.GetByAddress(ctx, strings.ToLower(identifier))
	}

	name, err := s.registry.NormalizeName(identifier)
	if err != nil {
		return nil, &InvalidIdentifierError{Identifier: identifier, Reason: "not an address or a normalizable name"}
	}
	return s.repo.GetByName(ctx, name)
}

// UpdateProfile force-refreshes the row for address from the registry.
func (s *profileService) UpdateProfile(ctx context.Context, address, nameHint string) error {
	if !addressRegex.MatchString(strings.TrimSpace(address)) {
		return &InvalidIdentifierError{Identifier: address, Reason: "must be a 0x-prefixed 40-hex-digit address"}
	}
	address = strings.ToLower(strings.TrimSpace(address))

	if s.flight == nil {
		return s.refresh(ctx, address, nameHint)
	}

	// The first caller's context governs the shared refresh.
	_, err, shared := s.flight.Do(address, func() (interface{}, error) {
		return nil, s.refresh(ctx, address, nameHint)
	})
	if shared {
		refreshesCoalesced.Inc()
	}
	return err
}

func (s *profileService) refresh(ctx context.Context, address, nameHint string) (err error) {
	start := time.Now()
	defer func() {
		refreshDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			refreshes.WithLabelValues("error").Inc()
		} else {
			refreshes.WithLabelValues("ok").Inc()
		}
	}()

	name := strings.TrimSpace(nameHint)
	if name == "" {
		name, err = s.registry.ReverseLookup(ctx, address)
		if err != nil {
			return &ResolutionError{Identifier: address, Err: err}
		}
	}
	if name != "" {
		name, err = s.registry.NormalizeName(name)
		if err != nil {
			return &InvalidIdentifierError{Identifier: nameHint, Reason: err.Error()}
		}
	}

	// Text records hang off the name; an address with no primary name gets
	// an all-empty data record.
	var data ProfileData
	if name != "" {
		data, err = s.fetchData(ctx, name)
		if err != nil {
			return err
		}
	}

	profile := &Profile{
		Address:   address,
		Name:      name,
		Data:      data,
		UpdatedAt: s.clock().Unix(),
	}

	if name != "" {
		// Name transfer: the previous holder of this name loses the claim
		// as part of this refresh.
		if claimer, ok := s.repo.(NameClaimer); ok {
			err = claimer.UpsertClaimingName(ctx, profile)
			return err
		}
		if err = s.repo.ClearNameExcept(ctx, name, address); err != nil {
			return fmt.Errorf("failed to reconcile name claim for %s: %w", name, err)
		}
	}

	err = s.repo.Upsert(ctx, profile)
	return err
}

// fetchData pulls the avatar and text records for name concurrently.
// Absent records come back as empty strings; registry failures abort the
// whole refresh.
func (s *profileService) fetchData(ctx context.Context, name string) (ProfileData, error) {
	var data ProfileData

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.Avatar, err = s.registry.Avatar(ctx, name)
		return err
	})
	g.Go(func() (err error) {
		data.Header, err = s.registry.Text(ctx, name, "header")
		return err
	})
	g.Go(func() (err error) {
		data.Description, err = s.registry.Text(ctx, name, "description")
		return err
	})
	g.Go(func() (err error) {
		data.Links.URL, err = s.registry.Text(ctx, name, "url")
		return err
	})
	g.Go(func() (err error) {
		data.Links.Email, err = s.registry.Text(ctx, name, "email")
		return err
	})
	g.Go(func() (err error) {
		data.Links.Twitter, err = s.registry.Text(ctx, name, "com.twitter")
		return err
	})
	g.Go(func() (err error) {
		data.Links.GitHub, err = s.registry.Text(ctx, name, "com.github")
		return err
	})

	if err := g.Wait(); err != nil {
		return ProfileData{}, &ResolutionError{Identifier: name, Err: err}
	}
	return data, nil
}

// IsFresh reports whether a refresh timestamp is still within the TTL.
// A zero or missing timestamp is never fresh.
func (s *profileService) IsFresh(updatedAt int64) bool {
	if updatedAt <= 0 {
		return false
	}
	return s.clock().UnixMilli()-updatedAt*1000 < s.ttl.Milliseconds()
}
