package accesscontrol

import (
	"net/url"
	"strings"

	"github.com/lachlan2k/storefront-gate/internal/routes"
)

// Facts is what the guard needs to know about the current session.
type Facts interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

type Outcome int

const (
	Proceed Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	if o == Redirect {
		return "redirect"
	}
	return "proceed"
}

type Decision struct {
	Outcome  Outcome
	Location string
}

func (d Decision) Allowed() bool {
	return d.Outcome == Proceed
}

// Decide is evaluated for every navigation. It reads nothing but its
// arguments. A nil route (nothing matched) always proceeds.
func Decide(route *routes.Route, facts Facts, signinPath string) Decision {
	if route == nil {
		return Decision{Outcome: Proceed}
	}

	// Checking IsAdmin alone is enough here: without a token there is no admin
	if route.Access == routes.AccessRequiresAdmin && !facts.IsAdmin() {
		return Decision{Outcome: Redirect, Location: signinPath}
	}

	if route.Access == routes.AccessRequiresAuth && !facts.IsAuthenticated() {
		return Decision{Outcome: Redirect, Location: signinPath}
	}

	return Decision{Outcome: Proceed}
}

// Guard ties a route table and a session together.
type Guard struct {
	table      *routes.Table
	facts      Facts
	signinPath string
}

func NewGuard(table *routes.Table, facts Facts, signinPath string) *Guard {
	return &Guard{table: table, facts: facts, signinPath: signinPath}
}

func (g *Guard) SigninPath() string {
	return g.signinPath
}

// Navigate resolves path and decides on it. The match is nil when no route
// matched.
func (g *Guard) Navigate(path string) (Decision, *routes.Match) {
	match, ok := g.table.Match(path)
	if !ok {
		return Decide(nil, g.facts, g.signinPath), nil
	}
	return Decide(match.Route, g.facts, g.signinPath), match
}

// SafeRedirect reports whether target may be used as a post sign-in redirect:
// only paths on this site are accepted.
func SafeRedirect(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}

	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	return u.Scheme == "" && u.Host == ""
}
