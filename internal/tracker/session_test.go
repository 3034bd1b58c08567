package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSession_Bump(t *testing.T) {
	sess := NewSession()
	if _, err := uuid.Parse(sess.ID()); err != nil {
		t.Errorf("ID() = %q, want a uuid", sess.ID())
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Bump()
		}()
	}
	wg.Wait()

	if sess.ReloadCounter() != 50 {
		t.Errorf("ReloadCounter() = %d, want 50", sess.ReloadCounter())
	}
}

func TestSession_MarkRefreshedIsMonotonic(t *testing.T) {
	sess := NewSession()
	later := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	sess.markRefreshed(later)
	sess.markRefreshed(later.Add(-time.Hour))

	if !sess.LastRefreshed().Equal(later) {
		t.Errorf("LastRefreshed() = %v, want %v", sess.LastRefreshed(), later)
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	a := store.Get("")
	if a.ID() == "" {
		t.Fatal("Get(\"\") returned a session without id")
	}
	if store.Get(a.ID()) != a {
		t.Error("Get(id) should return the stored session")
	}
	if b := store.Get("not-a-uuid"); b.ID() == "not-a-uuid" {
		t.Error("malformed ids must be replaced")
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}

	now = now.Add(2 * time.Hour)
	kept := store.Get(a.ID())
	if dropped := store.Prune(time.Hour); dropped != 1 {
		t.Errorf("Prune() dropped %d, want 1", dropped)
	}
	if store.Get(a.ID()) != kept {
		t.Error("recently used session should survive Prune")
	}
}
