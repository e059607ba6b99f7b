package markup

import (
	"strings"
	"testing"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinks_Forms(t *testing.T) {
	text := "See [Foo], [the bar|Bar], [Baz#Section] and [Main Page/logo.png]."
	links := Links(text, Options{})
	require.Len(t, links, 4)

	assert.Equal(t, "Foo", links[0].Target)
	assert.Equal(t, "the bar", links[1].Text)
	assert.Equal(t, "Bar", links[1].Target)
	assert.Equal(t, "Baz", links[2].Target)
	assert.Equal(t, "Section", links[2].Anchor)
	assert.Equal(t, "Main Page/logo.png", links[3].Target)

	for _, l := range links {
		assert.Equal(t, l.Target, text[l.TargetStart:l.TargetEnd])
	}
}

func TestLinks_Skipped(t *testing.T) {
	text := strings.Join([]string{
		"[[not a link]",
		"[{TableOfContents}]",
		"[{SET colour=blue}]",
		"[1]",
		"[#anchor]",
		"[http://example.com]",
		"[docs|https://example.com/x.png]",
		"[mail|mailto:a@b.c]",
		"[Wikipedia:Go]",
		"{{{ [InCode] }}}",
		"[Real]",
	}, " ")
	assert.Equal(t, []string{"Real"}, Targets(text, Options{Interwiki: []string{"wikipedia"}}))
}

func TestLinks_Unterminated(t *testing.T) {
	assert.Empty(t, Links("[Foo", Options{}))
	assert.Empty(t, Links("{{{ [Foo]", Options{}))
	assert.Equal(t, []string{"Bar"}, Targets("[Bar] [{broken", Options{}))
}

func TestTargets_DistinctAndCleaned(t *testing.T) {
	text := "[main page] [Main Page] [x|MainPage#top] [Other]"
	assert.Equal(t, []string{"MainPage", "Other"}, Targets(text, Options{}))
}

func TestCleanLink(t *testing.T) {
	tests := map[string]string{
		"main page":         "MainPage",
		"  Foo  ":           "Foo",
		"foo bar/logo.png":  "FooBar/logo.png",
		"What's up?":        "WhatsUp",
		"Main:Some page":    "Main:SomePage",
		"ümlaut seite":      "ÜmlautSeite",
		"a-b c_d":           "A-bC_d",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanLink(in), in)
	}
}

func TestRenameLinks(t *testing.T) {
	text := "[Old], [text|Old#a], [old page|Old Page], [Old/logo.png], [Older], [http://x/Old]"
	got, changed := RenameLinks(text, "Old", "New", Options{})
	require.True(t, changed)
	assert.Equal(t, "[New], [text|New#a], [old page|Old Page], [New/logo.png], [Older], [http://x/Old]", got)

	got, changed = RenameLinks("[old page] and [x|Old Page/Sub]", "OldPage", "Fresh", Options{})
	require.True(t, changed)
	assert.Equal(t, "[Fresh] and [x|Fresh/Sub]", got)

	got, changed = RenameLinks("[A/B/file.txt]", "A/B", "C", Options{})
	require.True(t, changed)
	assert.Equal(t, "[C/file.txt]", got)

	got, changed = RenameLinks("nothing here", "Old", "New", Options{})
	assert.False(t, changed)
	assert.Equal(t, "nothing here", got)
}

func TestVariables(t *testing.T) {
	text := "[{SET colour=blue}] [{SET alias='Main Page'}] [{ SET colour = red }]"
	vars := Variables(text)
	assert.Equal(t, map[string]string{"colour": "red", "alias": "Main Page"}, vars)
}

func TestParser_ParseMetadata(t *testing.T) {
	ps := NewParser(validate.DefaultLimits())
	p := &provider.Page{Name: "Foo"}
	require.NoError(t, ps.ParseMetadata(p, "[{SET status=draft}]"))
	assert.Equal(t, "draft", p.Attributes["status"])

	tight := NewParser(validate.Limits{MaxValueLength: 3})
	p = &provider.Page{Name: "Foo"}
	err := tight.ParseMetadata(p, "[{SET status=draft}]")
	assert.ErrorIs(t, err, validate.ErrInvalidProperty)
	assert.Empty(t, p.Attributes)
}
