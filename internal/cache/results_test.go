package cache

import (
	"fmt"
	"sync"
	"testing"

	"rusle-platform/internal/models"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	entry := Entry{
		Scale: models.ScaleDecision{Requested: 30, Minimum: 90, Effective: 90, Adjusted: true},
	}

	t.Run("get on empty store misses", func(t *testing.T) {
		if _, ok := store.Get("missing"); ok {
			t.Error("Get() on empty store returned ok")
		}
	})

	t.Run("put then get", func(t *testing.T) {
		store.Put("job-1", entry)

		got, ok := store.Get("job-1")
		if !ok {
			t.Fatal("Get() after Put() missed")
		}
		if got.Scale.Effective != 90 {
			t.Errorf("Scale.Effective = %d, want 90", got.Scale.Effective)
		}
		if store.Len() != 1 {
			t.Errorf("Len() = %d, want 1", store.Len())
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		replaced := entry
		replaced.Scale.Effective = 250
		store.Put("job-1", replaced)

		got, _ := store.Get("job-1")
		if got.Scale.Effective != 250 {
			t.Errorf("Scale.Effective = %d, want 250 after replace", got.Scale.Effective)
		}
		if store.Len() != 1 {
			t.Errorf("Len() = %d, want 1 after replace", store.Len())
		}
	})

	t.Run("delete", func(t *testing.T) {
		store.Delete("job-1")
		if _, ok := store.Get("job-1"); ok {
			t.Error("Get() after Delete() returned ok")
		}

		// Deleting again is a no-op.
		store.Delete("job-1")
		if store.Len() != 0 {
			t.Errorf("Len() = %d, want 0", store.Len())
		}
	})
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("job-%d-%d", w, i)
				store.Put(id, Entry{})
				if _, ok := store.Get(id); !ok {
					t.Errorf("Get(%s) missed its own Put", id)
				}
				store.Len()
			}
		}(w)
	}
	wg.Wait()

	if store.Len() != writers*perWriter {
		t.Errorf("Len() = %d, want %d", store.Len(), writers*perWriter)
	}
}
