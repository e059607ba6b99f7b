package wikipath

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		in, space, path, name string
	}{
		{"Main:Foo", "Main", "Foo", "Foo"},
		{"Foo", DefaultSpace, "Foo", "Foo"},
		{"Docs:Projects/Wikid", "Docs", "Projects/Wikid", "Wikid"},
		{"Docs:/Projects//Wikid/", "Docs", "Projects/Wikid", "Wikid"},
		{"Main:", "Main", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := ValueOf(tt.in)
			assert.Equal(t, tt.space, p.Space())
			assert.Equal(t, tt.path, p.Path())
			assert.Equal(t, tt.name, p.Name())
		})
	}
	assert.Equal(t, "Wiki", Parse("Foo", "Wiki").Space())
	assert.True(t, ValueOf("Main:").IsZero())
}

func TestEqualityIgnoresCase(t *testing.T) {
	a := ValueOf("Main:Foo/Bar")
	b := ValueOf("main:foo/BAR")
	assert.True(t, a.Equal(b))
	assert.Equal(t, 0, a.Compare(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.EqualString("FOO/bar"))
	assert.True(t, a.EqualString("MAIN:foo/bar"))
	assert.False(t, a.EqualString("Docs:Foo/Bar"))

	ps := []WikiPath{ValueOf("b"), ValueOf("A"), ValueOf("c")}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Compare(ps[j]) < 0 })
	assert.Equal(t, "Main:A", ps[0].String())
}

func TestParentAndChild(t *testing.T) {
	p := ValueOf("Main:Foo/Bar")
	parent, ok := p.Parent()
	require.True(t, ok)
	assert.Equal(t, "Main:Foo", parent.String())
	_, ok = parent.Parent()
	assert.False(t, ok)
	assert.Equal(t, "Main:Foo/Bar/Baz", p.Child("Baz").String())
}

func TestRepoPaths(t *testing.T) {
	p := ValueOf("Main:Foo/Bar")
	assert.Equal(t, "/pages/Main/Foo/Bar", p.RepoPath())
	assert.Equal(t, "/wiki:uncreated/Main/Foo/Bar", p.UncreatedPath())

	back, err := FromRepoPath("/pages/Main/Foo/Bar")
	require.NoError(t, err)
	assert.True(t, back.Equal(p))

	back, err = FromRepoPath("/wiki:uncreated/Main/Foo")
	require.NoError(t, err)
	assert.Equal(t, "Main:Foo", back.String())

	_, err = FromRepoPath("/other/Main/Foo")
	assert.Error(t, err)
	_, err = FromRepoPath("/pagesX/Main")
	assert.Error(t, err)
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct{ P WikiPath }{ValueOf("Docs:Foo")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"P":"Docs:Foo"}`, string(b))

	var out struct{ P WikiPath }
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "Docs:Foo", out.P.String())
}

// fakeTree is a map-backed Tree keyed by lower-cased repository path.
type fakeTree struct {
	titles map[string]string
	ids    map[string]string
	calls  int
}

func newFakeTree(paths ...string) *fakeTree {
	t := &fakeTree{titles: map[string]string{}, ids: map[string]string{}}
	for _, p := range paths {
		cur := ""
		for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
			cur += "/" + seg
			t.titles[strings.ToLower(cur)] = seg
		}
		t.ids[strings.ToLower(p)] = fmt.Sprintf("id-%d", len(t.ids)+1)
	}
	return t
}

func (t *fakeTree) Title(_ context.Context, rp string) (string, error) {
	t.calls++
	title, ok := t.titles[strings.ToLower(rp)]
	if !ok {
		return "", ErrNotFound
	}
	return title, nil
}

func (t *fakeTree) UUID(_ context.Context, rp string) (string, error) {
	t.calls++
	id, ok := t.ids[strings.ToLower(rp)]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (t *fakeTree) PathOf(_ context.Context, id string) (string, error) {
	t.calls++
	for p, v := range t.ids {
		if v == id {
			return p, nil
		}
	}
	return "", ErrNotFound
}

func TestCanonical_RecoversCase(t *testing.T) {
	tree := newFakeTree("/pages/Main/FooBar/SubPage")
	r := NewResolver(tree, 0)
	ctx := context.Background()

	p, err := r.Canonical(ctx, "main/foobar/subpage")
	require.NoError(t, err)
	assert.Equal(t, "Main:FooBar/SubPage", p.String())

	_, err = r.Canonical(ctx, "main/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanonical_PrefersUncreatedStubs(t *testing.T) {
	tree := newFakeTree("/wiki:uncreated/Main/NewPage", "/pages/MAIN/newpage")
	r := NewResolver(tree, 0)

	p, err := r.Canonical(context.Background(), "main/newpage")
	require.NoError(t, err)
	assert.Equal(t, "Main:NewPage", p.String())
}

func TestCanonical_MemoisedUntilClear(t *testing.T) {
	tree := newFakeTree("/pages/Main/Foo")
	r := NewResolver(tree, 0)
	ctx := context.Background()

	_, err := r.Canonical(ctx, "main/foo")
	require.NoError(t, err)
	calls := tree.calls

	_, err = r.Canonical(ctx, "MAIN/FOO")
	require.NoError(t, err)
	assert.Equal(t, calls, tree.calls, "second lookup should be served from the cache")

	tree.titles["/pages/main/foo"] = "FOO"
	r.Clear()
	p, err := r.Canonical(ctx, "main/foo")
	require.NoError(t, err)
	assert.Equal(t, "Main:FOO", p.String())
}

func TestCanonicalPath_FallsBackToInput(t *testing.T) {
	r := NewResolver(newFakeTree(), 0)
	p := ValueOf("Main:nowhere")
	assert.Equal(t, p, r.CanonicalPath(context.Background(), p))
}

func TestUUIDAndPathOf(t *testing.T) {
	tree := newFakeTree("/pages/Main/Foo")
	r := NewResolver(tree, 0)
	ctx := context.Background()

	id, err := r.UUID(ctx, ValueOf("main:foo"))
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	calls := tree.calls
	p, err := r.PathOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Main:Foo", p.String())
	assert.Greater(t, tree.calls, calls)

	// The reverse mapping came from the cache; only titles were read.
	_, ok := r.byUUID.Get(id)
	assert.True(t, ok)

	_, err = r.UUID(ctx, ValueOf("Main:Missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.PathOf(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
