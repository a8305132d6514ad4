// Package gate admits or redirects navigation based on the session state.
package gate

import (
	"strings"

	"github.com/fakeyudi/tgdeck/internal/session"
)

// Access is the guard a route carries.
type Access int

const (
	Public    Access = iota // always admitted
	GuestOnly               // only without a session (login, register)
	Protected               // only with an authenticated session
)

func (a Access) String() string {
	switch a {
	case GuestOnly:
		return "guest-only"
	case Protected:
		return "protected"
	default:
		return "public"
	}
}

// Decision is the gate's verdict.
type Decision int

const (
	Allow Decision = iota
	Loading
	RedirectLogin
	RedirectDashboard
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect:/login"
	case RedirectDashboard:
		return "redirect:/dashboard"
	default:
		return "allow"
	}
}

// Admit decides whether a route guarded by access may be entered given snap.
// Protected routes wait while the session is still resolving.
func Admit(access Access, snap session.Snapshot) Decision {
	switch access {
	case Protected:
		if snap.Authenticated {
			return Allow
		}
		if pending(snap) {
			return Loading
		}
		return RedirectLogin
	case GuestOnly:
		if snap.Authenticated {
			return RedirectDashboard
		}
		return Allow
	default:
		return Allow
	}
}

func pending(snap session.Snapshot) bool {
	return snap.Loading || snap.State == session.Uninitialized
}

// Routes is the navigation table.
var Routes = map[string]Access{
	"/login":            GuestOnly,
	"/register":         GuestOnly,
	"/reset-password":   Public,
	"/new-password":     Public,
	"/dashboard":        Protected,
	"/channel-manager":  Protected,
	"/channel-data/:id": Protected,
	"/telegram-setup":   Protected,
}

// Resolve returns the decision for path. "/" redirects to the dashboard or
// the login page; unknown paths are treated as protected.
func Resolve(path string, snap session.Snapshot) Decision {
	if path == "/" || path == "" {
		if snap.Authenticated {
			return RedirectDashboard
		}
		if pending(snap) {
			return Loading
		}
		return RedirectLogin
	}
	if access, ok := Routes[path]; ok {
		return Admit(access, snap)
	}
	for pattern, access := range Routes {
		if match(pattern, path) {
			return Admit(access, snap)
		}
	}
	return Admit(Protected, snap)
}

// match compares a route pattern with ":param" segments against path.
func match(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}
