package gate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fakeyudi/tgdeck/internal/gate"
	"github.com/fakeyudi/tgdeck/internal/session"
)

var (
	authed  = session.Snapshot{State: session.Authenticated, Authenticated: true, Token: "t", User: &session.UserProfile{Email: "a@b.c"}}
	guest   = session.Snapshot{State: session.Unauthenticated}
	loading = session.Snapshot{State: session.Hydrating, Token: "t", Loading: true}
	fresh   = session.Snapshot{State: session.Uninitialized}
	// Token kept after a failed profile fetch; not authenticated, not loading.
	stalled = session.Snapshot{State: session.Hydrating, Token: "t"}
)

func TestAdmit(t *testing.T) {
	tests := []struct {
		access gate.Access
		snap   session.Snapshot
		want   gate.Decision
	}{
		{gate.Protected, authed, gate.Allow},
		{gate.Protected, guest, gate.RedirectLogin},
		{gate.Protected, loading, gate.Loading},
		{gate.Protected, fresh, gate.Loading},
		{gate.Protected, stalled, gate.RedirectLogin},
		{gate.GuestOnly, authed, gate.RedirectDashboard},
		{gate.GuestOnly, guest, gate.Allow},
		{gate.GuestOnly, loading, gate.Allow},
		{gate.Public, authed, gate.Allow},
		{gate.Public, guest, gate.Allow},
	}
	for _, tt := range tests {
		t.Run(tt.access.String()+"/"+tt.snap.State.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, gate.Admit(tt.access, tt.snap))
		})
	}
}

func TestResolve(t *testing.T) {
	assert.Equal(t, gate.RedirectDashboard, gate.Resolve("/", authed))
	assert.Equal(t, gate.RedirectLogin, gate.Resolve("/", guest))
	assert.Equal(t, gate.Loading, gate.Resolve("/", loading))

	assert.Equal(t, gate.Allow, gate.Resolve("/channel-data/-100123", authed))
	assert.Equal(t, gate.RedirectLogin, gate.Resolve("/channel-data/-100123", guest))
	assert.Equal(t, gate.RedirectLogin, gate.Resolve("/channel-data/", guest))
	assert.Equal(t, gate.RedirectDashboard, gate.Resolve("/login", authed))
	assert.Equal(t, gate.Allow, gate.Resolve("/reset-password", guest))
	assert.Equal(t, gate.RedirectLogin, gate.Resolve("/unknown", guest))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "redirect:/login", gate.RedirectLogin.String())
	assert.Equal(t, "allow", gate.Allow.String())
}
