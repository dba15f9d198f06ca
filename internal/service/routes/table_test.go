package routes

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_DefaultDeny(t *testing.T) {
	table := NewTable(nil, nil)

	assert.True(t, table.IsProtected("/api/v1/widgets"))
	assert.True(t, table.IsProtected("/"))
	assert.True(t, table.IsProtected(""))
	assert.Equal(t, Protected, table.Classify("/anything"))
}

func TestTable_ExactMatch(t *testing.T) {
	table := NewTable([]string{"/health", "/openapi.json"}, nil)

	assert.True(t, table.IsPublic("/health"))
	assert.True(t, table.IsPublic("/openapi.json"))
	assert.Equal(t, Public, table.Classify("/health"))

	// Exact means exact: sub-paths stay protected.
	assert.True(t, table.IsProtected("/health/live"))
	assert.True(t, table.IsProtected("/healthcheck"))
}

func TestTable_PrefixMatch(t *testing.T) {
	table := NewTable(nil, []string{"/docs"})

	assert.True(t, table.IsPublic("/docs"))
	assert.True(t, table.IsPublic("/docs/swagger-ui.css"))
	assert.True(t, table.IsPublic("/docs-internal")) // plain string prefix
	assert.True(t, table.IsProtected("/api/docs"))
}

func TestTable_Mutation(t *testing.T) {
	table := NewTable(nil, nil)

	table.AddExact("/status")
	assert.True(t, table.IsPublic("/status"))

	table.AddPrefix("/static/")
	assert.True(t, table.IsPublic("/static/app.js"))
	assert.True(t, table.IsProtected("/static")) // prefix carries trailing slash

	require.True(t, table.RemoveExact("/status"))
	assert.True(t, table.IsProtected("/status"))
	assert.False(t, table.RemoveExact("/status"))

	require.True(t, table.RemovePrefix("/static/"))
	assert.True(t, table.IsProtected("/static/app.js"))
	assert.False(t, table.RemovePrefix("/static/"))
}

func TestTable_NormalizesEntries(t *testing.T) {
	table := NewTable([]string{" health ", ""}, []string{"docs"})

	assert.True(t, table.IsPublic("/health"))
	assert.True(t, table.IsPublic("/docs/page"))

	snap := table.Snapshot()
	assert.Equal(t, []string{"/health"}, snap.PublicExact)
	assert.Equal(t, []string{"/docs"}, snap.PublicPrefixes)
}

func TestTable_Replace(t *testing.T) {
	table := NewTable([]string{"/old"}, []string{"/old-prefix"})

	table.Replace([]string{"/new"}, []string{"/new-prefix", "/new-prefix"})

	assert.True(t, table.IsProtected("/old"))
	assert.True(t, table.IsProtected("/old-prefix/x"))
	assert.True(t, table.IsPublic("/new"))
	assert.True(t, table.IsPublic("/new-prefix/x"))

	snap := table.Snapshot()
	assert.Equal(t, []string{"/new-prefix"}, snap.PublicPrefixes)
}

func TestTable_SnapshotIsSortedCopy(t *testing.T) {
	table := NewTable([]string{"/z", "/a", "/m"}, []string{"/q", "/b"})

	snap := table.Snapshot()
	assert.Equal(t, []string{"/a", "/m", "/z"}, snap.PublicExact)
	assert.Equal(t, []string{"/b", "/q"}, snap.PublicPrefixes)

	// Mutating the snapshot does not touch the table.
	snap.PublicExact[0] = "/mutated"
	assert.True(t, table.IsPublic("/a"))
}

func TestTable_ConcurrentAccess(t *testing.T) {
	table := NewTable([]string{"/health"}, []string{"/docs"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/runtime/%d", i)
			for j := 0; j < 100; j++ {
				table.AddExact(path)
				table.IsPublic(path)
				table.IsProtected("/api/v1/things")
				table.Snapshot()
				table.RemoveExact(path)
			}
		}(i)
	}
	wg.Wait()

	assert.True(t, table.IsPublic("/health"))
	assert.True(t, table.IsPublic("/docs/page"))
}
