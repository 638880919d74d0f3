package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkupPlainTextUntouched(t *testing.T) {
	assert.Equal(t, "just plain text", StripMarkup("  just plain text  "))
}

func TestStripMarkupRemovesTags(t *testing.T) {
	html := "<p>The printer shows an <b>error</b>.</p><p>Second line.</p>"

	assert.Equal(t, "The printer shows an error. Second line.", StripMarkup(html))
}

func TestStripMarkupDecodesEntities(t *testing.T) {
	assert.Equal(t, "a & b", StripMarkup("a &amp; b"))
}

func TestStripMarkupCollapsesWhitespace(t *testing.T) {
	html := "<div>  lots \n\n of \t space  </div>"

	assert.Equal(t, "lots of space", StripMarkup(html))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "hé...", Truncate("héllo!", 2))
}
