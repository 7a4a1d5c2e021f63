package registry

import (
	"testing"

	"github.com/SkyMonder/SkyCallPro/internal/hub"
)

func TestBindAndLookup(t *testing.T) {
	h := hub.NewHub()
	r := New()
	conn := h.NewConnection(nil)

	r.Bind(conn, "alice")

	got, ok := r.Lookup("alice")
	if !ok || got != conn {
		t.Fatalf("expected lookup to return the bound connection")
	}
	username, ok := r.IdentityOf(conn)
	if !ok || username != "alice" {
		t.Fatalf("expected identityOf to return alice, got %q (%v)", username, ok)
	}
}

func TestLastLoginWins(t *testing.T) {
	h := hub.NewHub()
	r := New()
	connA := h.NewConnection(nil)
	connB := h.NewConnection(nil)

	r.Bind(connA, "alice")
	r.Bind(connB, "alice")

	got, ok := r.Lookup("alice")
	if !ok || got != connB {
		t.Fatalf("expected the newer connection to win")
	}
	if _, ok := r.IdentityOf(connA); ok {
		t.Fatalf("superseded connection must no longer map to an identity")
	}

	// Stale unbind from the superseded connection must not remove the
	// current binding.
	if removed := r.Unbind(connA); removed {
		t.Fatalf("stale unbind must be a no-op")
	}
	if got, ok := r.Lookup("alice"); !ok || got != connB {
		t.Fatalf("current binding lost after stale unbind")
	}
}

func TestUnbind(t *testing.T) {
	h := hub.NewHub()
	r := New()
	conn := h.NewConnection(nil)

	r.Bind(conn, "alice")
	if removed := r.Unbind(conn); !removed {
		t.Fatalf("expected unbind to remove the binding")
	}
	if _, ok := r.Lookup("alice"); ok {
		t.Fatalf("identity still resolvable after unbind")
	}
	if removed := r.Unbind(conn); removed {
		t.Fatalf("double unbind must be a no-op")
	}
}

func TestUnknownConnectionIsNoOp(t *testing.T) {
	h := hub.NewHub()
	r := New()
	conn := h.NewConnection(nil)

	if removed := r.Unbind(conn); removed {
		t.Fatalf("unbind of unknown connection must be a no-op")
	}
	if _, ok := r.IdentityOf(conn); ok {
		t.Fatalf("unknown connection must have no identity")
	}
}

func TestReannounceAsDifferentIdentity(t *testing.T) {
	h := hub.NewHub()
	r := New()
	conn := h.NewConnection(nil)

	r.Bind(conn, "alice")
	r.Bind(conn, "bob")

	if _, ok := r.Lookup("alice"); ok {
		t.Fatalf("old identity must be unbound after re-announce")
	}
	if got, ok := r.Lookup("bob"); !ok || got != conn {
		t.Fatalf("new identity not bound")
	}
}

func TestChangeNotifications(t *testing.T) {
	h := hub.NewHub()
	r := New()
	var fired int
	r.OnChange(func() { fired++ })

	connA := h.NewConnection(nil)
	connB := h.NewConnection(nil)

	r.Bind(connA, "alice") // mutation
	if fired != 1 {
		t.Fatalf("expected 1 notification after bind, got %d", fired)
	}

	r.Bind(connA, "alice") // identical rebind, no net change
	if fired != 1 {
		t.Fatalf("identical rebind must not notify, got %d", fired)
	}

	r.Bind(connB, "alice") // supersede, mutation
	if fired != 2 {
		t.Fatalf("expected 2 notifications after supersede, got %d", fired)
	}

	r.Unbind(connA) // stale, no net change
	if fired != 2 {
		t.Fatalf("stale unbind must not notify, got %d", fired)
	}

	r.Unbind(connB) // mutation
	if fired != 3 {
		t.Fatalf("expected 3 notifications after unbind, got %d", fired)
	}

	r.Unbind(connB) // already gone
	if fired != 3 {
		t.Fatalf("double unbind must not notify, got %d", fired)
	}
}

func TestOnline(t *testing.T) {
	h := hub.NewHub()
	r := New()

	r.Bind(h.NewConnection(nil), "alice")
	r.Bind(h.NewConnection(nil), "bob")

	online := r.Online()
	if len(online) != 2 || !online["alice"] || !online["bob"] {
		t.Fatalf("unexpected online set: %v", online)
	}
	if r.OnlineCount() != 2 {
		t.Fatalf("expected 2 online, got %d", r.OnlineCount())
	}
}
