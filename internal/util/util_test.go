package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtr(t *testing.T) {
	p := Ptr(42)
	assert.Equal(t, 42, *p)

	s := Ptr("digest.md")
	assert.Equal(t, "digest.md", *s)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello world", 5))
	assert.Equal(t, "short", TruncateRunes("short", 100))
	assert.Equal(t, "", TruncateRunes("anything", 0))
	assert.Equal(t, "héllo", TruncateRunes("héllo wörld", 5))
	assert.Equal(t, "日本", TruncateRunes("日本語", 2))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a \n\t b   c  "))
	assert.Equal(t, "", NormalizeWhitespace(" \n "))
}
