package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageName(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr error
	}{
		{"Main", "Main", nil},
		{"  Main Page ", "Main Page", nil},
		{"docs/readme", "docs/readme", nil},
		{"", "", ErrInvalidName},
		{"   ", "", ErrInvalidName},
		{"bad\x00name", "", ErrInvalidName},
		{"two\nlines", "", ErrInvalidName},
		{"Bad\xffName", "", ErrInvalidName},
		{strings.Repeat("x", 11), "", ErrNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := PageName(tt.input, 10+len(tt.want))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttachmentName(t *testing.T) {
	got, err := AttachmentName(" photo.png ")
	require.NoError(t, err)
	assert.Equal(t, "photo.png", got)

	for _, bad := range []string{"a/b.png", ".", "..", " .. ", "bad\xff.png"} {
		_, err = AttachmentName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}

	got, err = AttachmentName("..hidden")
	require.NoError(t, err)
	assert.Equal(t, "..hidden", got)
}

func TestProperties(t *testing.T) {
	l := Limits{MaxProperties: 2, MaxKeyLength: 5, MaxValueLength: 8}

	assert.NoError(t, Properties(nil, l))
	assert.NoError(t, Properties(map[string]string{"a": "b", "k": "value"}, l))

	err := Properties(map[string]string{"a": "1", "b": "2", "c": "3"}, l)
	assert.ErrorIs(t, err, ErrInvalidProperty)

	err = Properties(map[string]string{"toolong": "v"}, l)
	assert.ErrorIs(t, err, ErrInvalidProperty)
	assert.Contains(t, err.Error(), "toolong")

	err = Properties(map[string]string{"k": "123456789"}, l)
	assert.ErrorIs(t, err, ErrInvalidProperty)
	assert.Contains(t, err.Error(), `"k"`)

	err = Properties(map[string]string{"k": "héllo"}, l)
	assert.ErrorIs(t, err, ErrInvalidProperty)

	err = Properties(map[string]string{"k": "tab\there"}, DefaultLimits())
	assert.ErrorIs(t, err, ErrInvalidProperty)
}

func TestContent(t *testing.T) {
	assert.NoError(t, Content("abc", 0))
	assert.NoError(t, Content("abc", 3))
	assert.ErrorIs(t, Content("abcd", 3), ErrContentTooLarge)
}
