package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/FreddRva/posoqo-checkout/internal/profile/domain"
)

// Service reconciles the three profile sources: the remote record, the
// cached address fragment and the submitted form.
type Service struct {
	log      *slog.Logger
	api      RemoteAPI
	cache    AddressCache
	validate *validator.Validate
}

func NewService(log *slog.Logger, api RemoteAPI, cache AddressCache) *Service {
	return &Service{
		log:      log,
		api:      api,
		cache:    cache,
		validate: domain.NewValidator(),
	}
}

// Load hydrates the canonical profile at session start. A remote failure
// is returned for the session to surface, together with whatever the cache
// can fall back to, so checkout keeps going.
func (s *Service) Load(ctx context.Context, token, userKey string) (domain.Profile, error) {
	remote, err := s.api.Fetch(ctx, token)
	if err != nil {
		cached, ok, cerr := s.cache.Load(ctx, userKey)
		if cerr != nil {
			s.log.Warn("address cache read failed", "err", cerr)
		}
		if ok {
			return domain.Merge(domain.Profile{}, cached), fmt.Errorf("fetch profile: %w", err)
		}
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}

	cached, ok, cerr := s.cache.Load(ctx, userKey)
	if cerr != nil {
		s.log.Warn("address cache read failed", "err", cerr)
	}
	if ok {
		return domain.Merge(remote, cached), nil
	}
	return remote, nil
}

// SaveResult reports what a save did with the form.
type SaveResult struct {
	Profile domain.Profile
	// Written is true when an upsert was issued. A no-change save only
	// refreshes the remote record.
	Written bool
}

// Save runs the reconciliation described by the profile form contract:
// change detection first, then local validation, then the upsert, and only
// after a confirmed write the cache mirror. Any failure leaves the held
// profile untouched.
func (s *Service) Save(ctx context.Context, token, userKey string, held domain.Profile, form domain.Form) (SaveResult, error) {
	if !held.Differs(form) {
		remote, err := s.api.Fetch(ctx, token)
		if err != nil {
			return SaveResult{Profile: held}, fmt.Errorf("refresh profile: %w", err)
		}
		s.log.Debug("profile unchanged, adopted remote", "user", userKey)
		return SaveResult{Profile: remote}, nil
	}

	if err := domain.ValidateForm(s.validate, form); err != nil {
		return SaveResult{Profile: held}, err
	}

	payload := form.Profile()
	if err := s.api.Update(ctx, token, payload); err != nil {
		return SaveResult{Profile: held}, fmt.Errorf("save profile: %w", err)
	}

	canonical, err := s.api.Fetch(ctx, token)
	if err != nil {
		// The write landed; the payload is the best canonical we have.
		s.log.Warn("post-save refresh failed", "err", err)
		canonical = payload
	}

	if err := s.cache.Store(ctx, userKey, canonical.AddressFragment()); err != nil {
		s.log.Warn("address cache mirror failed", "err", err)
	}

	return SaveResult{Profile: canonical, Written: true}, nil
}
