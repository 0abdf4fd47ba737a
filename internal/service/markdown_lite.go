package service

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	mdHeaderRe   = regexp.MustCompile(`(?m)^#{1,6}\s+(.*)$`)
	mdBoldRe     = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalicRe   = regexp.MustCompile(`\*([^*]+)\*`)
	mdBulletRe   = regexp.MustCompile(`(?m)^(\s*)-\s+(.+)$`)
	mdNumberedRe = regexp.MustCompile(`(?m)^(\s*)(\d+)\.\s+(.+)$`)
)

const (
	mdBulletHTML    = `<div class="ml-4 mb-2 flex"><span class="mr-2 text-port-500">•</span><span>${2}</span></div>`
	mdNumberedHTML  = `<div class="ml-4 mb-2 flex"><span class="mr-2 font-medium text-port-500">${2}.</span><span>${3}</span></div>`
	mdParagraphOpen = `<p class="mb-3">`
)

// RenderMarkdownLite convierte el subconjunto de markdown que devuelve el LLM a HTML.
// Es una función pura: headers sin marcas, negrita, itálica, listas y párrafos.
func RenderMarkdownLite(text string) string {
	if text == "" {
		return ""
	}

	out := mdHeaderRe.ReplaceAllString(text, "${1}")
	out = mdBoldRe.ReplaceAllString(out, "<strong>${1}</strong>")
	out = mdItalicRe.ReplaceAllString(out, "<em>${1}</em>")
	out = mdBulletRe.ReplaceAllString(out, mdBulletHTML)
	out = mdNumberedRe.ReplaceAllString(out, mdNumberedHTML)
	out = strings.ReplaceAll(out, "\n\n", "</p>"+mdParagraphOpen)

	if !strings.HasPrefix(out, "<p") && !strings.HasPrefix(out, "<div") {
		out = mdParagraphOpen + out + "</p>"
	}
	return out
}

// sectionPolicy deja pasar solo lo que genera RenderMarkdownLite.
var sectionPolicy = newSectionPolicy()

func newSectionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "div", "span", "strong", "em", "br")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9\- ]+$`)).OnElements("p", "div", "span")
	return p
}

// Render aplica markdown-lite y sanitiza el HTML antes de inyectarlo en la página.
func Render(text string) string {
	if text == "" {
		return ""
	}
	return sectionPolicy.Sanitize(RenderMarkdownLite(text))
}
