package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/steffenmax/arbbot/internal/domain"
)

// CachingSource is a write-through decorator that stores every book fetched
// from a venue in the book cache. Cache failures are logged and never fail
// the fetch.
type CachingSource struct {
	src    domain.BookSource
	cache  domain.BookCache
	logger *slog.Logger
}

// NewCachingSource wraps src.
func NewCachingSource(src domain.BookSource, cache domain.BookCache, logger *slog.Logger) *CachingSource {
	return &CachingSource{
		src:    src,
		cache:  cache,
		logger: logger.With(slog.String("component", "book_source"), slog.String("venue", string(src.Venue()))),
	}
}

func (s *CachingSource) Venue() domain.Venue { return s.src.Venue() }

// FetchBook fetches from the venue and caches the result.
func (s *CachingSource) FetchBook(ctx context.Context, ref string) (domain.VenueBook, error) {
	book, err := s.src.FetchBook(ctx, ref)
	if err != nil {
		return domain.VenueBook{}, err
	}
	if err := s.cache.SetBook(ctx, book); err != nil {
		s.logger.WarnContext(ctx, "book_source: cache write failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
	}
	return book, nil
}

// CacheSource serves books from the cache only, for processes that do not
// talk to the venues themselves.
type CacheSource struct {
	venue domain.Venue
	cache domain.BookCache
}

// NewCacheSource returns a read-only source for venue.
func NewCacheSource(venue domain.Venue, cache domain.BookCache) *CacheSource {
	return &CacheSource{venue: venue, cache: cache}
}

func (s *CacheSource) Venue() domain.Venue { return s.venue }

// FetchBook returns the cached book, or ErrMissingQuote when none is cached.
func (s *CacheSource) FetchBook(ctx context.Context, ref string) (domain.VenueBook, error) {
	book, err := s.cache.GetBook(ctx, s.venue, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.VenueBook{}, fmt.Errorf("book_source: %s %s not cached: %w", s.venue, ref, domain.ErrMissingQuote)
	}
	if err != nil {
		return domain.VenueBook{}, fmt.Errorf("book_source: cache read %s %s: %w", s.venue, ref, err)
	}
	return book, nil
}

var (
	_ domain.BookSource = (*CachingSource)(nil)
	_ domain.BookSource = (*CacheSource)(nil)
)
