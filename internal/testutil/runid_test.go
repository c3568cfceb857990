package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialRunIDs_Order(t *testing.T) {
	gen := NewSequentialRunIDs("apply")
	assert.Equal(t, "apply-0001", gen.Generate())
	assert.Equal(t, "apply-0002", gen.Generate())
}

func TestSequentialRunIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-0001", NewSequentialRunIDs("").Generate())
}

func TestSequentialRunIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialRunIDs("t")
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := gen.Generate()
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %s", id)
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestCatalogFixture(t *testing.T) {
	c := Catalog(t)
	doc, ok := c.ByName("InitializeEvent")
	require.True(t, ok)
	require.NotNil(t, doc.Init)
	assert.Equal(t, 1, doc.Init.Callee)
}
