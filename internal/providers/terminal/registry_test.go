package terminal

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(4)
	a := &Session{id: "a"}
	b := &Session{id: "b"}

	assert.Nil(t, r.Insert("a", a))
	assert.Nil(t, r.Insert("b", b))
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Len(t, r.List(), 2)
}

func TestRegistryInsertReturnsDisplaced(t *testing.T) {
	r := NewRegistry(4)
	first := &Session{id: "a"}
	second := &Session{id: "a"}

	r.Insert("a", first)
	assert.Same(t, first, r.Insert("a", second))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemoveIsCompareAndDelete(t *testing.T) {
	r := NewRegistry(4)
	old := &Session{id: "a"}
	cur := &Session{id: "a"}

	r.Insert("a", old)
	r.Insert("a", cur)

	assert.False(t, r.Remove("a", old), "stale session must not remove its replacement")
	got, _ := r.Get("a")
	assert.Same(t, cur, got)

	assert.True(t, r.Remove("a", cur))
	assert.False(t, r.Remove("a", cur))
	assert.Zero(t, r.Len())
}

func TestRegistryDefaultShards(t *testing.T) {
	assert.Len(t, NewRegistry(0).shards, DefaultShards)
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry(8)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("s%d", i%20)
				s := &Session{id: id}
				r.Insert(id, s)
				r.Get(id)
				r.Remove(id, s)
				r.List()
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 20)
}

func TestKeyLockSerializesSameID(t *testing.T) {
	k := newKeyLock()

	unlock := k.Lock("a")
	acquired := make(chan struct{})
	go func() {
		u := k.Lock("a")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held id")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the id")
	}

	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}

func TestKeyLockDifferentIDsIndependent(t *testing.T) {
	k := newKeyLock()

	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.Lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different ids contended")
	}
	assert.Equal(t, 1, k.size())
}
