package vm

import (
	"testing"
	"time"

	"collateral/types"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

func TestLockTableReleasesEntries(t *testing.T) {
	lt := newLockTable()
	release := lt.acquire("b", "a", "b")
	assert.Equal(t, 2, lt.size())
	release()
	assert.Equal(t, 0, lt.size())
}

func TestLockTableOppositeOrderDoesNotDeadlock(t *testing.T) {
	lt := newLockTable()
	var g errgroup.Group
	for i := 0; i < 64; i++ {
		ids := []types.Identity{"a", "b"}
		if i%2 == 1 {
			ids = []types.Identity{"b", "a"}
		}
		g.Go(func() error {
			release := lt.acquire(ids...)
			release()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lock acquisition deadlocked")
	}
	assert.Equal(t, 0, lt.size())
}
