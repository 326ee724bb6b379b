package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielolaszy/tether/internal/cache"
	"github.com/danielolaszy/tether/internal/logging"
	"github.com/danielolaszy/tether/pkg/models"
)

// CredentialProvider names the account whose credentials authenticate
// remote calls. Passed in explicitly; the engine keeps no ambient account
// state.
type CredentialProvider interface {
	CurrentIdentity() (models.Identity, error)
}

// ListingSource fetches fresh listings from the remote service.
type ListingSource interface {
	ListRepositories(ctx context.Context) ([]models.Summary, error)
	ListProjects(ctx context.Context) ([]models.Summary, error)
}

// ListingService serves remote listings cache-first: fresh cached rows for
// the current identity are returned without a remote call; stale or missing
// entries trigger a fetch-and-store.
type ListingService struct {
	cache  *cache.Cache
	source ListingSource
	creds  CredentialProvider
}

// NewListingService wires a listing service.
func NewListingService(c *cache.Cache, source ListingSource, creds CredentialProvider) *ListingService {
	return &ListingService{cache: c, source: source, creds: creds}
}

// Repositories lists the identity's repositories. refresh bypasses the
// cache window.
func (s *ListingService) Repositories(ctx context.Context, refresh bool) ([]models.Summary, error) {
	return s.listing(ctx, models.KindRepository, refresh, s.source.ListRepositories)
}

// Projects lists the identity's projects. refresh bypasses the cache window.
func (s *ListingService) Projects(ctx context.Context, refresh bool) ([]models.Summary, error) {
	return s.listing(ctx, models.KindProject, refresh, s.source.ListProjects)
}

func (s *ListingService) listing(ctx context.Context, kind models.SummaryKind, refresh bool, fetch func(context.Context) ([]models.Summary, error)) ([]models.Summary, error) {
	identity, err := s.creds.CurrentIdentity()
	if err != nil {
		return nil, fmt.Errorf("resolving account identity: %w", err)
	}

	if !refresh {
		rows, err := s.cache.GetListing(ctx, kind, identity)
		if err == nil {
			return rows, nil
		}
		if !errors.Is(err, cache.ErrStale) {
			return nil, err
		}
	}

	rows, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.StoreListing(ctx, kind, identity, rows); err != nil {
		// The listing itself succeeded; a cache write failure only costs
		// the next call a refetch.
		logging.Warn("caching listing failed", "kind", kind, "error", err)
	}
	return rows, nil
}
