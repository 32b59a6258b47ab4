package dynastore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ds "github.com/harborstack/dynastore-go"
)

func TestCompilePatternExact(t *testing.T) {
	match := ds.CompilePattern(ds.Like("alice"))
	assert.True(t, match("alice"))
	assert.False(t, match("Alice"))
	assert.False(t, match("alice "))
	assert.False(t, match("malice"))
}

func TestCompilePatternEmpty(t *testing.T) {
	match := ds.CompilePattern(ds.Like(""))
	assert.True(t, match(""))
	assert.False(t, match("a"))
}

func TestCompilePatternWildcardOnly(t *testing.T) {
	match := ds.CompilePattern(ds.Like("%"))
	assert.True(t, match(""))
	assert.True(t, match("anything at all"))
}

func TestCompilePatternPrefixSuffix(t *testing.T) {
	prefix := ds.CompilePattern(ds.Like("al%"))
	assert.True(t, prefix("alice"))
	assert.True(t, prefix("al"))
	assert.False(t, prefix("bob"))

	suffix := ds.CompilePattern(ds.Like("%ce"))
	assert.True(t, suffix("alice"))
	assert.True(t, suffix("ce"))
	assert.False(t, suffix("cedric"))
}

func TestCompilePatternInfix(t *testing.T) {
	match := ds.CompilePattern(ds.Like("%li%"))
	assert.True(t, match("alice"))
	assert.True(t, match("li"))
	assert.False(t, match("bob"))
}

func TestCompilePatternMultipleSegments(t *testing.T) {
	match := ds.CompilePattern(ds.Like("a%c%e"))
	assert.True(t, match("alice"))
	assert.True(t, match("ace"))
	assert.True(t, match("abcde"))
	assert.False(t, match("aec")) // segments must appear in order
	assert.False(t, match("alic"))
}

func TestCompilePatternSuffixNotConsumedByInner(t *testing.T) {
	// The inner segment may not overlap the suffix region.
	match := ds.CompilePattern(ds.Like("a%b%b"))
	assert.True(t, match("axbyb"))
	assert.True(t, match("abb"))
	assert.False(t, match("ab"))
}

func TestCompilePatternAdjacentWildcards(t *testing.T) {
	match := ds.CompilePattern(ds.Like("a%%e"))
	assert.True(t, match("ae"))
	assert.True(t, match("alice"))
	assert.False(t, match("ea"))
}

func TestCompilePatternCaseFold(t *testing.T) {
	sensitive := ds.CompilePattern(ds.Like("AL%"))
	assert.False(t, sensitive("alice"))

	insensitive := ds.CompilePattern(ds.ILike("AL%"))
	assert.True(t, insensitive("alice"))
	assert.True(t, insensitive("ALICE"))
	assert.False(t, insensitive("bob"))
}

func TestCompilePatternNoEscapeSyntax(t *testing.T) {
	// There is no escape: a literal "%" cannot be matched, it is always
	// a wildcard.
	match := ds.CompilePattern(ds.Like("100%"))
	assert.True(t, match("100"))
	assert.True(t, match("100 percent"))
}
