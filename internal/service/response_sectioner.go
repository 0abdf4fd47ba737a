package service

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	SectionArgument = "Argument"
	SectionAnalysis = "Analysis"
)

type sectionPattern struct {
	name    string
	pattern *regexp.Regexp
}

// El orden importa: gana el primer patrón que matchea en la línea.
var sectionPatterns = []sectionPattern{
	newSectionPattern("Argument Analysis"),
	newSectionPattern("Logical Structure"),
	newSectionPattern("Fallacies"),
	newSectionPattern("Strength"),
	newSectionPattern("Improvements"),
	newSectionPattern("Revised Argument"),
}

func newSectionPattern(label string) sectionPattern {
	return sectionPattern{
		name:    label,
		pattern: regexp.MustCompile(`(?:\d+\.\s+)?\*\*` + regexp.QuoteMeta(label) + `:\*\*`),
	}
}

// Section es un bloque nombrado del análisis, ya renderizado a HTML.
type Section struct {
	Name string `json:"name"`
	HTML string `json:"html"`
}

// Sections mantiene las secciones en el orden en que aparecieron por primera vez.
type Sections struct {
	order []string
	html  map[string]string
}

func (s *Sections) set(name, html string) {
	if s.html == nil {
		s.html = make(map[string]string)
	}
	if _, ok := s.html[name]; !ok {
		s.order = append(s.order, name)
	}
	s.html[name] = html
}

func (s Sections) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s Sections) Get(name string) (string, bool) {
	v, ok := s.html[name]
	return v, ok
}

func (s Sections) Len() int {
	return len(s.order)
}

// List devuelve las secciones en orden.
func (s Sections) List() []Section {
	out := make([]Section, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Section{Name: name, HTML: s.html[name]})
	}
	return out
}

// MarshalJSON serializa como array para no perder el orden.
func (s Sections) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func fallbackSections(content string) Sections {
	var s Sections
	s.set(SectionAnalysis, Render(content))
	return s
}

// FormatResponse parte la respuesta del LLM en secciones por etiquetas en negrita.
// Nunca falla: si no hay etiquetas reconocidas, o si algo sale mal, devuelve una única sección "Analysis".
func FormatResponse(content string) (out Sections) {
	defer func() {
		if r := recover(); r != nil {
			out = fallbackSections(content)
		}
	}()

	if !containsSectionMarker(content) {
		return fallbackSections(content)
	}

	var (
		sections    Sections
		current     string
		buf         strings.Builder
		preamble    strings.Builder
		hasPreamble bool
	)

	for _, line := range strings.Split(content, "\n") {
		if sp, ok := matchSection(line); ok {
			if current != "" {
				sections.set(current, Render(strings.TrimSpace(buf.String())))
			}
			current = sp.name
			buf.Reset()
			buf.WriteString(strings.TrimSpace(replaceFirst(sp.pattern, line, "")))
			buf.WriteString("\n")
			continue
		}

		if current != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
			continue
		}

		// Texto antes de la primera etiqueta.
		if !hasPreamble && strings.TrimSpace(line) != "" {
			hasPreamble = true
			sections.set(SectionArgument, "")
		}
		preamble.WriteString(line)
		preamble.WriteString("\n")
	}

	if current != "" {
		sections.set(current, Render(strings.TrimSpace(buf.String())))
	}
	if hasPreamble {
		sections.set(SectionArgument, Render("**Argument:** "+strings.TrimSpace(preamble.String())))
	}

	if sections.Len() == 0 {
		return fallbackSections(content)
	}
	return sections
}

func containsSectionMarker(content string) bool {
	for _, sp := range sectionPatterns {
		if sp.pattern.MatchString(content) {
			return true
		}
	}
	return false
}

func matchSection(line string) (sectionPattern, bool) {
	for _, sp := range sectionPatterns {
		if sp.pattern.MatchString(line) {
			return sp, true
		}
	}
	return sectionPattern{}, false
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
