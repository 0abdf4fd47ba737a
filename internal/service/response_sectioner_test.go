package service

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestFormatResponse_NoMarkersFallsBackToAnalysis(t *testing.T) {
	inputs := []string{
		"Just a plain paragraph.",
		"Line one\n\nLine two with *emphasis*",
		"**Fallacy:** singular label is not a marker",
		"**fallacies:** lowercase is not a marker",
		"- bullet\n- list",
	}
	for _, in := range inputs {
		got := FormatResponse(in)
		if !reflect.DeepEqual(got.Keys(), []string{SectionAnalysis}) {
			t.Fatalf("input %q: expected only Analysis key, got %v", in, got.Keys())
		}
		html, _ := got.Get(SectionAnalysis)
		if html != Render(in) {
			t.Fatalf("input %q: expected %q, got %q", in, Render(in), html)
		}
	}
}

func TestFormatResponse_EmptyInput(t *testing.T) {
	for i := 0; i < 2; i++ {
		got := FormatResponse("")
		if got.Len() != 1 {
			t.Fatalf("expected one section, got %d", got.Len())
		}
		html, ok := got.Get(SectionAnalysis)
		if !ok || html != "" {
			t.Fatalf("expected empty Analysis section, got %q (ok=%v)", html, ok)
		}
	}
}

func TestFormatResponse_OrderedSections(t *testing.T) {
	got := FormatResponse("**Fallacies:** A\n**Strength:** B")

	if !reflect.DeepEqual(got.Keys(), []string{"Fallacies", "Strength"}) {
		t.Fatalf("unexpected keys %v", got.Keys())
	}
	fallacies, _ := got.Get("Fallacies")
	if fallacies != `<p class="mb-3">A</p>` {
		t.Fatalf("unexpected Fallacies html %q", fallacies)
	}
	strength, _ := got.Get("Strength")
	if strength != `<p class="mb-3">B</p>` {
		t.Fatalf("unexpected Strength html %q", strength)
	}
}

func TestFormatResponse_NumberedMarkers(t *testing.T) {
	plain := FormatResponse("**Fallacies:** text\n**Improvements:** more")
	numbered := FormatResponse("1. **Fallacies:** text\n2. **Improvements:** more")

	if !reflect.DeepEqual(plain.Keys(), numbered.Keys()) {
		t.Fatalf("expected same keys, got %v vs %v", plain.Keys(), numbered.Keys())
	}
	for _, k := range plain.Keys() {
		a, _ := plain.Get(k)
		b, _ := numbered.Get(k)
		if a != b {
			t.Fatalf("section %s differs: %q vs %q", k, a, b)
		}
	}

	// Aplica a los seis labels, incluidos los que no tenían ordinal en la versión web.
	rev := FormatResponse("6. **Revised Argument:** better")
	html, ok := rev.Get("Revised Argument")
	if !ok || html != `<p class="mb-3">better</p>` {
		t.Fatalf("unexpected Revised Argument html %q", html)
	}
}

func TestFormatResponse_PreambleGoesToArgument(t *testing.T) {
	got := FormatResponse("All cats are grey.\nTherefore my cat is grey.\n**Logical Structure:** Syllogism")

	if !reflect.DeepEqual(got.Keys(), []string{SectionArgument, "Logical Structure"}) {
		t.Fatalf("unexpected keys %v", got.Keys())
	}
	arg, _ := got.Get(SectionArgument)
	if !strings.HasPrefix(arg, `<p class="mb-3"><strong>Argument:</strong> All cats are grey.`) {
		t.Fatalf("expected Argument label prefix, got %q", arg)
	}
	if !strings.Contains(arg, "Therefore my cat is grey.") {
		t.Fatalf("expected full preamble, got %q", arg)
	}
}

func TestFormatResponse_WhitespacePreambleIsDropped(t *testing.T) {
	got := FormatResponse("\n   \n**Strength:** 7/10")
	if !reflect.DeepEqual(got.Keys(), []string{"Strength"}) {
		t.Fatalf("unexpected keys %v", got.Keys())
	}
}

func TestFormatResponse_MultilineSectionBody(t *testing.T) {
	in := "**Fallacies:**\n- Ad hominem\n- Straw man\n\n**Improvements:** Cite sources"
	got := FormatResponse(in)

	fallacies, _ := got.Get("Fallacies")
	want := `<div class="ml-4 mb-2 flex"><span class="mr-2 text-port-500">•</span><span>Ad hominem</span></div>` + "\n" +
		`<div class="ml-4 mb-2 flex"><span class="mr-2 text-port-500">•</span><span>Straw man</span></div>`
	if fallacies != want {
		t.Fatalf("unexpected Fallacies html\nwant %q\ngot  %q", want, fallacies)
	}
}

func TestFormatResponse_DuplicateLabelKeepsFirstPosition(t *testing.T) {
	got := FormatResponse("**Fallacies:** first\n**Strength:** strong\n**Fallacies:** second")

	if !reflect.DeepEqual(got.Keys(), []string{"Fallacies", "Strength"}) {
		t.Fatalf("unexpected keys %v", got.Keys())
	}
	html, _ := got.Get("Fallacies")
	if html != `<p class="mb-3">second</p>` {
		t.Fatalf("expected second occurrence to win, got %q", html)
	}
}

func TestFormatResponse_FirstPatternWinsOnLine(t *testing.T) {
	got := FormatResponse("**Logical Structure:** see **Fallacies:** below")
	if !reflect.DeepEqual(got.Keys(), []string{"Logical Structure"}) {
		t.Fatalf("unexpected keys %v", got.Keys())
	}
	html, _ := got.Get("Logical Structure")
	if html != `<p class="mb-3">see <strong>Fallacies:</strong> below</p>` {
		t.Fatalf("unexpected html %q", html)
	}
}

func TestFormatResponse_SanitizesModelOutput(t *testing.T) {
	got := FormatResponse("**Fallacies:** <script>alert(1)</script><img src=x onerror=alert(1)>ok")
	html, _ := got.Get("Fallacies")
	if strings.Contains(html, "<script") || strings.Contains(html, "<img") || strings.Contains(html, "onerror") {
		t.Fatalf("expected sanitized html, got %q", html)
	}
	if !strings.Contains(html, "ok") {
		t.Fatalf("expected text content kept, got %q", html)
	}
}

func TestFormatResponse_AdversarialInputDoesNotPanic(t *testing.T) {
	inputs := []string{
		"**", "****", "1.", "1. **", "**Fallacies:**", "\n\n\n",
		strings.Repeat("**Strength:** x\n", 500),
		"\x00\xff**Fallacies:**\xfe",
	}
	for _, in := range inputs {
		got := FormatResponse(in)
		if got.Len() == 0 {
			t.Fatalf("input %q: expected at least one section", in)
		}
	}
}

func TestSectionsMarshalJSONKeepsOrder(t *testing.T) {
	got := FormatResponse("**Strength:** B\n**Fallacies:** A")
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []Section
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Name != "Strength" || decoded[1].Name != "Fallacies" {
		t.Fatalf("unexpected order %+v", decoded)
	}
	if decoded[0].HTML != `<p class="mb-3">B</p>` {
		t.Fatalf("unexpected html %q", decoded[0].HTML)
	}
}
