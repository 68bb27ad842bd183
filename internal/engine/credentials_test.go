package engine

import (
	"sync"
	"testing"
)

func TestCredentialPoolRotation(t *testing.T) {
	pool := NewCredentialPool([]string{"a", "b", "c"})
	want := []string{"a", "b", "c", "a"}
	for i, w := range want {
		if got := pool.Next(); got != w {
			t.Fatalf("call %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestCredentialPoolEmpty(t *testing.T) {
	pool := NewCredentialPool(nil)
	if pool.Size() != 0 {
		t.Fatalf("expected empty pool, got size %d", pool.Size())
	}
	if got := pool.Next(); got != "" {
		t.Fatalf("expected empty key from empty pool, got %q", got)
	}
}

func TestCredentialPoolDropsBlankKeys(t *testing.T) {
	pool := NewCredentialPool([]string{"", "a", ""})
	if pool.Size() != 1 {
		t.Fatalf("expected blank keys dropped, got size %d", pool.Size())
	}
	if got := pool.Next(); got != "a" {
		t.Fatalf("expected %q, got %q", "a", got)
	}
}

func TestCredentialPoolConcurrent(t *testing.T) {
	keys := []string{"a", "b", "c"}
	pool := NewCredentialPool(keys)
	valid := make(map[string]bool, len(keys))
	for _, k := range keys {
		valid[k] = true
	}

	var wg sync.WaitGroup
	got := make([]string, 300)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = pool.Next()
		}(i)
	}
	wg.Wait()

	for i, k := range got {
		if !valid[k] {
			t.Fatalf("call %d returned a key outside the pool: %q", i, k)
		}
	}
}
