// Package guard decides whether a route subtree renders, waits, or redirects.
// Decisions are pure functions of the session projection; guards never call
// the network.
package guard

import (
	"net/url"
	"strings"

	"github.com/fentro/cms-console/internal/auth"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	nextParam     = "next"
)

// Outcome is what a guard renders.
type Outcome string

const (
	OutcomeLoading           Outcome = "loading"
	OutcomeRedirectLogin     Outcome = "redirect_login"
	OutcomeRedirectDashboard Outcome = "redirect_dashboard"
	OutcomeRender            Outcome = "render"
)

// Decision is a guard outcome plus the redirect target, if any.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
}

// Private gates a subtree on authentication, preserving the intended
// destination when redirecting to the login page.
func Private(status auth.Status, intended string) Decision {
	switch status {
	case auth.StatusAuthenticated:
		return Decision{Outcome: OutcomeRender}
	case auth.StatusAnonymous:
		return Decision{Outcome: OutcomeRedirectLogin, Location: loginLocation(intended)}
	default:
		return Decision{Outcome: OutcomeLoading}
	}
}

// Admin composes Private and additionally sends non-admins to the dashboard.
func Admin(status auth.Status, isAdmin bool, intended string) Decision {
	decision := Private(status, intended)
	if decision.Outcome != OutcomeRender {
		return decision
	}
	if !isAdmin {
		return Decision{Outcome: OutcomeRedirectDashboard, Location: DashboardPath}
	}
	return decision
}

// Evaluate applies the guard matching access.
func Evaluate(access Access, snapshot auth.Snapshot, intended string) Decision {
	switch access {
	case AccessPrivate:
		return Private(snapshot.Status, intended)
	case AccessAdmin:
		return Admin(snapshot.Status, snapshot.IsAdmin(), intended)
	default:
		return Decision{Outcome: OutcomeRender}
	}
}

func loginLocation(intended string) string {
	intended = strings.TrimSpace(intended)
	if intended == "" || !strings.HasPrefix(intended, "/") || strings.HasPrefix(intended, "//") || strings.HasPrefix(intended, LoginPath) {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{nextParam: {intended}}.Encode()
}
