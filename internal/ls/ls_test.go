package ls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jpl-au/wikid/internal/provider"
)

func names(pages []provider.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Name
	}
	return out
}

func TestSort(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pages := func() []provider.Page {
		return []provider.Page{
			{Name: "beta", LastModified: t0, Size: 10},
			{Name: "Alpha", LastModified: t0.Add(time.Hour), Size: 5},
			{Name: "gamma", LastModified: t0, Size: 10},
		}
	}

	p := pages()
	Sort(p, SortName, false)
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, names(p))

	p = pages()
	Sort(p, SortTime, false)
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, names(p))

	p = pages()
	Sort(p, SortSize, false)
	assert.Equal(t, []string{"beta", "gamma", "Alpha"}, names(p))

	p = pages()
	Sort(p, SortName, true)
	assert.Equal(t, []string{"gamma", "beta", "Alpha"}, names(p))
}
