// Package entitlement manages the second-opinion feature flag and its
// usage counter, independent of the general subscription.
package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/byonco/webgate/internal/clientstate"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/storage"
)

// ErrNoUsesLeft is returned when the entitlement is inactive or spent.
var ErrNoUsesLeft = errors.New("no second-opinion uses left")

// Repository is the authoritative entitlement source.
type Repository interface {
	GetEntitlement(ctx context.Context, userUID string) (*models.Entitlement, error)
}

// Service reads and consumes the second-opinion entitlement.
//
// Consume takes mu so the usage counter's read-modify-write is
// serialized: all usage writes for a user go through this instance.
type Service struct {
	store clientstate.Store
	repo  Repository
	log   *slog.Logger

	mu sync.Mutex
}

// New creates an entitlement Service. repo may be nil in store-only setups.
func New(store clientstate.Store, repo Repository, log *slog.Logger) *Service {
	return &Service{store: store, repo: repo, log: log}
}

// Status returns the entitlement flag and usage counters for a user.
// Missing or malformed blobs read as inactive / zero usage.
func (s *Service) Status(ctx context.Context, userUID string) (models.Entitlement, models.SecondOpinionUsage) {
	const op = "entitlement.Status"

	var ent models.Entitlement
	found, err := s.store.Get(ctx, clientstate.EntitlementKey(userUID), &ent)
	if err != nil {
		s.log.Warn("entitlement blob unreadable", slog.String("op", op), sl.Err(err))
		ent = models.Entitlement{}
		found = false
	}
	if !found && s.repo != nil {
		if row, rerr := s.repo.GetEntitlement(ctx, userUID); rerr == nil {
			ent = *row
		} else if !errors.Is(rerr, storage.ErrNotFound) {
			s.log.Warn("entitlement lookup failed", slog.String("op", op), sl.Err(rerr))
		}
	}

	var usage models.SecondOpinionUsage
	if _, uerr := s.store.Get(ctx, clientstate.UsageKey(userUID), &usage); uerr != nil {
		s.log.Warn("usage blob unreadable", slog.String("op", op), sl.Err(uerr))
		usage = models.SecondOpinionUsage{}
	}
	return ent, usage
}

// Consume spends one second-opinion use. Fails closed when the
// entitlement is inactive or the counter is exhausted. Concurrent
// consumes are serialized, so two requests cannot both spend the last
// use.
func (s *Service) Consume(ctx context.Context, userUID string) (models.SecondOpinionUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, usage := s.Status(ctx, userUID)
	if !ent.Active || usage.Remaining() == 0 {
		return usage, ErrNoUsesLeft
	}
	usage.Used++
	if err := s.store.Set(ctx, clientstate.UsageKey(userUID), usage, 0); err != nil {
		return usage, err
	}
	return usage, nil
}
