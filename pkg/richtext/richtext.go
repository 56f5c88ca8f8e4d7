// Package richtext renders editor-supplied markdown into HTML that is safe to
// embed in portal pages.
package richtext

import (
	"bytes"
	"html/template"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	pkgstrings "intranet/pkg/platform/strings"
)

var (
	once   sync.Once
	md     goldmark.Markdown
	policy *bluemonday.Policy
)

func setup() {
	once.Do(func() {
		md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
		policy = bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
}

// Render converts markdown to sanitised HTML.
func Render(source string) (string, error) {
	setup()
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// Sanitize strips unsafe markup from already-rendered HTML.
func Sanitize(htmlSource string) string {
	setup()
	return policy.Sanitize(htmlSource)
}

// Trusted marks stored, already sanitised HTML for templates.
func Trusted(sanitised string) template.HTML {
	return template.HTML(sanitised) //nolint:gosec // produced by Render
}

// Excerpt renders a plain-text teaser of at most n runes.
func Excerpt(source string, n int) string {
	setup()
	plain := bluemonday.StrictPolicy().Sanitize(source)
	return pkgstrings.Truncate(plain, n)
}
