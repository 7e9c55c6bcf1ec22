// Package subscription resolves whether a user currently has paid access.
//
// Resolution order: admin allow-list, authoritative database row, cached
// client-state record. Any read or parse error is swallowed and resolves
// as not-active (fail closed).
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/byonco/webgate/internal/clientstate"
	"github.com/byonco/webgate/internal/lib/sl"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/storage"
)

// Reason explains a resolution outcome.
type Reason string

const (
	ReasonAdmin   Reason = "admin"
	ReasonActive  Reason = "active"
	ReasonExpired Reason = "expired"
	ReasonNone    Reason = "none"
	ReasonError   Reason = "error"
)

// Resolution is the resolver's answer for one user.
type Resolution struct {
	Active    bool
	Reason    Reason
	ExpiresAt time.Time // zero when no record was found
}

// Repository is the authoritative subscription source.
type Repository interface {
	GetSubscriptionByUserUID(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Resolver decides the subscription state for a session.
type Resolver struct {
	admins map[string]struct{}
	repo   Repository
	store  clientstate.Store
	log    *slog.Logger

	cacheTTL time.Duration
	now      func() time.Time
}

// NewResolver builds a Resolver. adminEmails is matched case-insensitively
// and exactly. repo may be nil when no authoritative source is configured;
// store is then the only record source.
func NewResolver(adminEmails []string, repo Repository, store clientstate.Store, cacheTTL time.Duration, log *slog.Logger) *Resolver {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(email)] = struct{}{}
	}
	return &Resolver{
		admins:   admins,
		repo:     repo,
		store:    store,
		log:      log,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Resolve returns the subscription state for the session. It never
// returns an error: failures resolve as {Active: false, Reason: error}.
func (r *Resolver) Resolve(ctx context.Context, sess *models.Session) Resolution {
	const op = "subscription.Resolve"

	if sess == nil {
		return Resolution{Active: false, Reason: ReasonNone}
	}
	if _, ok := r.admins[strings.ToLower(sess.Email)]; ok {
		return Resolution{Active: true, Reason: ReasonAdmin}
	}

	now := r.now()

	// Database row is authoritative when present.
	if r.repo != nil {
		sub, err := r.repo.GetSubscriptionByUserUID(ctx, sess.UserUID)
		switch {
		case err == nil:
			res := resolutionFor(*sub, now)
			r.refreshCache(ctx, sess.UserUID, *sub)
			return res
		case errors.Is(err, storage.ErrNotFound):
			// fall through to the cached record
		default:
			r.log.Error("subscription lookup failed", slog.String("op", op), sl.Err(err))
			return Resolution{Active: false, Reason: ReasonError}
		}
	}

	var sub models.Subscription
	found, err := r.store.Get(ctx, clientstate.SubscriptionKey(sess.UserUID), &sub)
	if err != nil {
		r.log.Error("subscription record unreadable", slog.String("op", op), sl.Err(err))
		return Resolution{Active: false, Reason: ReasonError}
	}
	if !found {
		return Resolution{Active: false, Reason: ReasonNone}
	}
	return resolutionFor(sub, now)
}

// Status reports the state for the subscription-status endpoint.
func (r *Resolver) Status(ctx context.Context, sess *models.Session) (status string, isActive bool, expiresAt time.Time) {
	res := r.Resolve(ctx, sess)
	return string(res.Reason), res.Active, res.ExpiresAt
}

func (r *Resolver) refreshCache(ctx context.Context, userUID string, sub models.Subscription) {
	if err := r.store.Set(ctx, clientstate.SubscriptionKey(userUID), sub, r.cacheTTL); err != nil {
		r.log.Warn("failed to cache subscription", slog.String("user_uid", userUID), sl.Err(err))
	}
}

// resolutionFor derives activity from the expiry, never from the advisory
// Active flag.
func resolutionFor(sub models.Subscription, now time.Time) Resolution {
	if sub.ActiveAt(now) {
		return Resolution{Active: true, Reason: ReasonActive, ExpiresAt: sub.ExpiresAt}
	}
	return Resolution{Active: false, Reason: ReasonExpired, ExpiresAt: sub.ExpiresAt}
}
