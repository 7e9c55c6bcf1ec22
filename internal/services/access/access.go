// Package access is the single place where the guard decision is made.
// Every route guard goes through Decide so the fail-closed rule lives in
// one testable function.
package access

import (
	"github.com/byonco/webgate/internal/models"
	"github.com/byonco/webgate/internal/services/subscription"
)

// Decision is the outcome of an access check: either render the page or
// redirect to a funnel step.
type Decision struct {
	Allow      bool
	RedirectTo string // funnel route, empty when Allow
}

// Policy holds the funnel destinations injected at startup.
type Policy struct {
	LoginRoute   string
	ProfileRoute string
	PaywallRoute string
}

// Decide maps session and subscription state to a guard decision.
//
// Requests for a funnel destination are always allowed, which is what
// prevents redirect loops. Everything ambiguous denies access: the only
// paths to Allow are an explicit funnel page, an admin resolution, or an
// active subscription.
func (p Policy) Decide(sess *models.Session, res subscription.Resolution, path string) Decision {
	if path == p.LoginRoute || path == p.ProfileRoute || path == p.PaywallRoute {
		return Decision{Allow: true}
	}
	if sess == nil {
		return Decision{RedirectTo: p.LoginRoute}
	}
	if !sess.ProfileCompleted && !sess.IsAdmin() {
		return Decision{RedirectTo: p.ProfileRoute}
	}
	if res.Active {
		return Decision{Allow: true}
	}
	return Decision{RedirectTo: p.PaywallRoute}
}

// DecideEntitled is Decide for pages a purchased feature entitlement
// unlocks on its own: an active entitlement opens the page the same way
// an active subscription does. The session and profile checks are
// unchanged.
func (p Policy) DecideEntitled(sess *models.Session, res subscription.Resolution, entitled bool, path string) Decision {
	if entitled {
		res.Active = true
	}
	return p.Decide(sess, res, path)
}
