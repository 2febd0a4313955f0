package session

import "github.com/opway/opway/internal/core/domain"

// Decision is the outcome of evaluating a route against the session.
type Decision int

const (
	// Deciding means the session is still loading. Render a neutral pending
	// view and do not redirect.
	Deciding Decision = iota
	RedirectLogin
	// RedirectFallback sends an authenticated user who lacks the required
	// role to the default landing area.
	RedirectFallback
	Allow
)

func (d Decision) String() string {
	switch d {
	case Deciding:
		return "deciding"
	case RedirectLogin:
		return "redirect-login"
	case RedirectFallback:
		return "redirect-fallback"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Route is a protected view. The zero Requires admits any authenticated user.
type Route struct {
	Path     string
	Requires domain.Role
}

// Outcome is a decision plus, for redirects, where to go.
type Outcome struct {
	Decision Decision
	Location string
}

const (
	DefaultLoginPath    = "/login"
	DefaultFallbackPath = "/dashboard"
)

// Routes are the protected views of the storefront.
var Routes = []Route{
	{Path: "/dashboard"},
	{Path: "/profile"},
	{Path: "/bookings"},
	{Path: "/admin", Requires: domain.RoleAdmin},
}

// LookupRoute finds path in Routes.
func LookupRoute(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Guard decides whether a route may be rendered.
type Guard struct {
	LoginPath    string
	FallbackPath string
}

func NewGuard() Guard {
	return Guard{LoginPath: DefaultLoginPath, FallbackPath: DefaultFallbackPath}
}

// Evaluate is a pure function of st and r.
func (g Guard) Evaluate(st State, r Route) Outcome {
	if st.Loading {
		return Outcome{Decision: Deciding}
	}
	// Inconsistent states count as signed out.
	if !st.Authenticated || st.Principal == nil || !st.Principal.Role.Valid() {
		return Outcome{Decision: RedirectLogin, Location: g.loginPath()}
	}
	if !st.Principal.Role.Satisfies(r.Requires) {
		return Outcome{Decision: RedirectFallback, Location: g.fallbackPath()}
	}
	return Outcome{Decision: Allow}
}

func (g Guard) loginPath() string {
	if g.LoginPath == "" {
		return DefaultLoginPath
	}
	return g.LoginPath
}

func (g Guard) fallbackPath() string {
	if g.FallbackPath == "" {
		return DefaultFallbackPath
	}
	return g.FallbackPath
}
