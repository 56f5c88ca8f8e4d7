package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("renders markdown", func(t *testing.T) {
		out, err := Render("# Title\n\nSome **bold** text")
		require.NoError(t, err)
		assert.Contains(t, out, "<h1")
		assert.Contains(t, out, "<strong>bold</strong>")
	})

	t.Run("strips script tags", func(t *testing.T) {
		out, err := Render("hello <script>alert(1)</script>")
		require.NoError(t, err)
		assert.NotContains(t, out, "<script")
	})

	t.Run("neutralises javascript links", func(t *testing.T) {
		out, err := Render("[click](javascript:alert(1))")
		require.NoError(t, err)
		assert.NotContains(t, out, "javascript:")
	})

	t.Run("external links get nofollow", func(t *testing.T) {
		out, err := Render("[site](https://example.com)")
		require.NoError(t, err)
		assert.Contains(t, out, `rel="nofollow`)
	})
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "plain text", Excerpt("<p>plain <b>text</b></p>", 50))
	assert.Equal(t, "abcd…", Excerpt("abcdefgh", 5))
}
