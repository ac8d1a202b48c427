package pathsafe

import (
	"path/filepath"
	"testing"

	"github.com/franz/sonora/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Artist Name", "Artist Name"},
		{"Artist/Name", "Artist_Name"},
		{`Artist:Name*?"<>|`, "Artist_Name______"},
		{"  Extra   Spaces  ", "Extra Spaces"},
		{"Trailing.", "Trailing"},
		{"../../etc", "_.._etc"},
	}

	for _, tt := range tests {
		got, err := CleanName(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got)
	}
}

func TestCleanNameRejectsEmpty(t *testing.T) {
	_, err := CleanName("   ")
	assert.ErrorIs(t, err, apperr.ErrPathEscape)

	_, err = CleanName("///")
	assert.NoError(t, err) // slashes become underscores, not empty
}

func TestCleanNameIdempotent(t *testing.T) {
	inputs := []string{"Artist/Name", "  spaced  ", "weird:chars*here", "Plain Name"}
	for _, in := range inputs {
		once, err := CleanName(in)
		require.NoError(t, err)
		twice, err := CleanName(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestUnderRootAcceptsNestedPath(t *testing.T) {
	root := t.TempDir()
	candidate := filepath.Join(root, "Artist", "Album", "01. Title.mp3")

	resolved, err := UnderRoot(root, candidate)
	require.NoError(t, err)
	assert.Equal(t, candidate, resolved)
}

func TestUnderRootRejectsEscape(t *testing.T) {
	root := t.TempDir()
	escape := filepath.Join(root, "..", "..", "etc", "passwd")

	_, err := UnderRoot(root, escape)
	assert.ErrorIs(t, err, apperr.ErrPathEscape)
}

func TestUnderRootRejectsSiblingWithSharedPrefix(t *testing.T) {
	root := filepath.Join(t.TempDir(), "music")
	sibling := root + "-evil"

	_, err := UnderRoot(root, sibling)
	assert.ErrorIs(t, err, apperr.ErrPathEscape)
}

func TestCanonicalArtistCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ac/dc", "AC/DC"},
		{"abba", "ABBA"},
		{"the beatles", "The Beatles"},
		{"beyonce feat jay z", "Beyonce feat Jay Z"},
		{"&me", "&ME"},
		{"&friends collective", "&Friends Collective"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CanonicalArtistCase(tt.input))
	}
}
