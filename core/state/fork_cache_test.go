package state

import "testing"

func TestForkCacheLRUEviction(t *testing.T) {
	c := newForkCache[int, string](CacheLRU, 2)
	c.put(1, "a")
	c.put(2, "b")

	// Touch 1 so it's the most recently used; 2 should be evicted next.
	if _, ok := c.get(1); !ok {
		t.Fatalf("expected hit on key 1")
	}
	c.put(3, "c")

	if _, ok := c.get(2); ok {
		t.Fatalf("key 2 should have been evicted under LRU")
	}
	if _, ok := c.get(1); !ok {
		t.Fatalf("key 1 should still be cached")
	}
	if _, ok := c.get(3); !ok {
		t.Fatalf("key 3 should be cached")
	}
}

func TestForkCacheFIFOEviction(t *testing.T) {
	c := newForkCache[int, string](CacheFIFO, 2)
	c.put(1, "a")
	c.put(2, "b")

	// Touching 1 must not affect FIFO eviction order.
	c.get(1)
	c.put(3, "c")

	if _, ok := c.get(1); ok {
		t.Fatalf("key 1 should have been evicted under FIFO regardless of access")
	}
	if _, ok := c.get(2); !ok {
		t.Fatalf("key 2 should still be cached")
	}
}

func TestForkCacheUnboundedNeverEvicts(t *testing.T) {
	c := newForkCache[int, string](CacheUnbounded, 1)
	c.put(1, "a")
	c.put(2, "b")
	c.put(3, "c")

	for _, k := range []int{1, 2, 3} {
		if _, ok := c.get(k); !ok {
			t.Fatalf("key %d should remain cached under an unbounded policy", k)
		}
	}
}
