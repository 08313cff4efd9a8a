package registry

import (
	"net"
	"sync"
	"testing"
)

// fakeHandle is a minimal ControlHandle for tests.
type fakeHandle struct {
	name string
}

func (f *fakeHandle) Push(event string, data any) error { return nil }

func TestControlSessionLifecycle(t *testing.T) {
	r := New()

	h1 := &fakeHandle{name: "conn-1"}
	r.RegisterControl("alice", h1)

	got, ok := r.LookupControl("alice")
	if !ok {
		t.Fatal("LookupControl(alice) = not found, want found")
	}
	if got != ControlHandle(h1) {
		t.Errorf("LookupControl(alice) returned wrong handle")
	}

	if _, ok := r.LookupControl("bob"); ok {
		t.Error("LookupControl(bob) = found, want not found")
	}

	prior, ok := r.UnregisterControl("alice")
	if !ok {
		t.Fatal("UnregisterControl(alice) = not found, want found")
	}
	if prior != ControlHandle(h1) {
		t.Error("UnregisterControl(alice) returned wrong prior handle")
	}

	if _, ok := r.LookupControl("alice"); ok {
		t.Error("alice still reachable after unregister")
	}

	if _, ok := r.UnregisterControl("alice"); ok {
		t.Error("second UnregisterControl(alice) = found, want not found")
	}
}

func TestRegisterControlReplaces(t *testing.T) {
	r := New()

	h1 := &fakeHandle{name: "old"}
	h2 := &fakeHandle{name: "new"}
	r.RegisterControl("alice", h1)
	r.RegisterControl("alice", h2)

	got, ok := r.LookupControl("alice")
	if !ok {
		t.Fatal("alice not found after re-register")
	}
	if got != ControlHandle(h2) {
		t.Error("lookup returned replaced handle, want the new one")
	}

	if n := r.OnlineCount(); n != 1 {
		t.Errorf("OnlineCount() = %d, want 1", n)
	}
}

func TestOnlineUsers(t *testing.T) {
	r := New()
	r.RegisterControl("alice", &fakeHandle{})
	r.RegisterControl("bob", &fakeHandle{})

	users := r.OnlineUsers()
	if len(users) != 2 {
		t.Fatalf("OnlineUsers() returned %d users, want 2", len(users))
	}
	seen := map[string]bool{}
	for _, u := range users {
		seen[u] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Errorf("OnlineUsers() = %v, want alice and bob", users)
	}
}

func TestEndpointUpsert(t *testing.T) {
	r := New()

	addr1 := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 40000}
	addr2 := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 40001}

	if _, ok := r.LookupEndpoint("alice"); ok {
		t.Error("LookupEndpoint before register = found, want not found")
	}

	r.RegisterEndpoint("alice", addr1)
	r.RegisterEndpoint("alice", addr2)

	got, ok := r.LookupEndpoint("alice")
	if !ok {
		t.Fatal("endpoint not found after register")
	}
	if !got.IP.Equal(addr2.IP) || got.Port != addr2.Port {
		t.Errorf("LookupEndpoint = %v, want %v (last writer wins)", got, addr2)
	}

	r.UnregisterEndpoint("alice")
	if _, ok := r.LookupEndpoint("alice"); ok {
		t.Error("endpoint still present after unregister")
	}
}

// Concurrent registrations and lookups must not tear. Run with -race.
func TestConcurrentAccess(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000 + n}
			for j := 0; j < 200; j++ {
				r.RegisterControl("alice", &fakeHandle{})
				r.RegisterEndpoint("alice", addr)
				r.LookupControl("alice")
				r.LookupEndpoint("alice")
				r.OnlineUsers()
			}
		}(i)
	}
	wg.Wait()

	// Whatever won the race, the stored address must be one of the full
	// values that was written, never a partial one.
	got, ok := r.LookupEndpoint("alice")
	if !ok {
		t.Fatal("endpoint missing after concurrent writes")
	}
	if !got.IP.Equal(net.IPv4(127, 0, 0, 1)) || got.Port < 40000 || got.Port > 40007 {
		t.Errorf("LookupEndpoint returned torn value: %v", got)
	}
}
