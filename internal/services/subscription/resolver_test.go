package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byonco/webgate/internal/clientstate"
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/storage"
)

type repoStub struct {
	sub *models.Subscription
	err error
}

func (r *repoStub) GetSubscriptionByUserUID(_ context.Context, _ string) (*models.Subscription, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.sub, nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var admins = []string{"Founder@ByOnco.in", "care@byonco.in"}

func sessionFor(email string) *models.Session {
	return &models.Session{UserUID: "uid-1", Email: email, Role: "user"}
}

func TestResolve_AdminBypass(t *testing.T) {
	store := clientstate.NewMemoryStore()
	resolver := NewResolver(admins, &repoStub{err: storage.ErrNotFound}, store, time.Hour, newNoopLogger())

	tests := []string{
		"founder@byonco.in",
		"FOUNDER@BYONCO.IN",
		"Care@ByOnco.In",
	}
	for _, email := range tests {
		res := resolver.Resolve(context.Background(), sessionFor(email))
		assert.True(t, res.Active, email)
		assert.Equal(t, ReasonAdmin, res.Reason, email)
	}

	// no partial matches
	res := resolver.Resolve(context.Background(), sessionFor("founder@byonco.in.evil.com"))
	assert.False(t, res.Active)
}

func TestResolve_NoRecord(t *testing.T) {
	store := clientstate.NewMemoryStore()
	resolver := NewResolver(admins, &repoStub{err: storage.ErrNotFound}, store, time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), sessionFor("patient@example.com"))
	assert.False(t, res.Active)
	assert.Equal(t, ReasonNone, res.Reason)
}

func TestResolve_ExpiredRecordIgnoresActiveFlag(t *testing.T) {
	store := clientstate.NewMemoryStore()
	// advisory Active=true but ExpiresAt in the past: must resolve expired
	require.NoError(t, store.Set(context.Background(), clientstate.SubscriptionKey("uid-1"), models.Subscription{
		PlanID:    "byonco-plus",
		ExpiresAt: time.Now().Add(-time.Hour),
		Active:    true,
	}, time.Hour))
	resolver := NewResolver(admins, &repoStub{err: storage.ErrNotFound}, store, time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), sessionFor("patient@example.com"))
	assert.False(t, res.Active)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestResolve_ActiveLocalRecord(t *testing.T) {
	store := clientstate.NewMemoryStore()
	expires := time.Now().Add(24 * time.Hour).UTC()
	require.NoError(t, store.Set(context.Background(), clientstate.SubscriptionKey("uid-1"), models.Subscription{
		PlanID:    "byonco-plus",
		ExpiresAt: expires,
	}, time.Hour))
	resolver := NewResolver(admins, &repoStub{err: storage.ErrNotFound}, store, time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), sessionFor("patient@example.com"))
	assert.True(t, res.Active)
	assert.Equal(t, ReasonActive, res.Reason)
	assert.WithinDuration(t, expires, res.ExpiresAt, time.Second)
}

func TestResolve_DatabaseRowAuthoritative(t *testing.T) {
	store := clientstate.NewMemoryStore()
	// stale active record in the store, expired row in the database
	require.NoError(t, store.Set(context.Background(), clientstate.SubscriptionKey("uid-1"), models.Subscription{
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, time.Hour))
	repo := &repoStub{sub: &models.Subscription{
		PlanID:    "byonco-plus",
		ExpiresAt: time.Now().Add(-time.Minute),
		Active:    true,
	}}
	resolver := NewResolver(admins, repo, store, time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), sessionFor("patient@example.com"))
	assert.False(t, res.Active)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestResolve_RepoErrorFailsClosed(t *testing.T) {
	store := clientstate.NewMemoryStore()
	resolver := NewResolver(admins, &repoStub{err: errors.New("connection refused")}, store, time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), sessionFor("patient@example.com"))
	assert.False(t, res.Active)
	assert.Equal(t, ReasonError, res.Reason)
}

func TestResolve_MalformedStoreRecordFailsClosed(t *testing.T) {
	store := clientstate.NewMemoryStore()
	store.SetRaw(clientstate.SubscriptionKey("uid-1"), []byte("{corrupt"))
	resolver := NewResolver(admins, &repoStub{err: storage.ErrNotFound}, store, time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), sessionFor("patient@example.com"))
	assert.False(t, res.Active)
	assert.Equal(t, ReasonError, res.Reason)
}

func TestResolve_NilSession(t *testing.T) {
	resolver := NewResolver(admins, nil, clientstate.NewMemoryStore(), time.Hour, newNoopLogger())

	res := resolver.Resolve(context.Background(), nil)
	assert.False(t, res.Active)
	assert.Equal(t, ReasonNone, res.Reason)
}
