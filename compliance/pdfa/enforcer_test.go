package pdfa

import (
	"context"
	"testing"

	"github.com/wudi/pdfarchive/ir/raw"
)

// newEnforcerDoc builds a one-page document whose fonts live in the
// returned resources dictionary.
func newEnforcerDoc(content string) (*raw.Document, *raw.DictObj) {
	doc := raw.NewDocument()

	res := raw.Dict()
	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Resources"), res)
	if content != "" {
		cs := raw.Dict()
		csRef := doc.Add(raw.NewStream(cs, []byte(content)))
		page.Set(raw.NameLiteral("Contents"), raw.Ref(csRef.Num, csRef.Gen))
	}
	pageRef := doc.Add(page)

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(pageRef.Num, pageRef.Gen)))
	pagesRef := doc.Add(pages)

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, pagesRef.Gen))
	catalogRef := doc.Add(catalog)

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, catalogRef.Gen))
	doc.Trailer = trailer

	return doc, res
}

func addResourceFont(doc *raw.Document, res *raw.DictObj, name string, dict *raw.DictObj) {
	ref := doc.Add(dict)
	fontRes, ok := doc.DictGetDict(res, "Font")
	if !ok {
		f := raw.Dict()
		res.Set(raw.NameLiteral("Font"), f)
		fontRes = f
	}
	fontRes.Set(raw.NameLiteral(name), raw.Ref(ref.Num, ref.Gen))
}

// helveticaDict is a non-embedded standard-14 font.
func helveticaDict() *raw.DictObj {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	dict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Helvetica"))
	dict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	return dict
}

func newTestEnforcer() *FontEnforcer {
	// Nonexistent font directories keep replacement lookups hermetic.
	return NewFontEnforcer(EnforcerConfig{FontDirs: []string{"testdata/no-such-dir"}})
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"2b", PDFA2B, true},
		{"PDF/A-1a", PDFA1A, true},
		{"4e", PDFA4E, true},
		{"5x", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseLevel(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestLevelPredicates(t *testing.T) {
	if !PDFA1B.IsLevelA1() || PDFA1B.AllowsTransparency() {
		t.Errorf("PDF/A-1b predicates wrong")
	}
	if !PDFA3B.AllowsArbitraryAttachment() || PDFA2B.AllowsArbitraryAttachment() {
		t.Errorf("attachment predicates wrong")
	}
	unicode := map[Level]bool{
		PDFA1A: true, PDFA1B: false,
		PDFA2A: true, PDFA2B: false, PDFA2U: true,
		PDFA3A: true, PDFA3B: false, PDFA3U: true,
		PDFA4: true, PDFA4E: true, PDFA4F: true,
	}
	for level, want := range unicode {
		if got := level.RequiresUnicodeMapping(); got != want {
			t.Errorf("%s.RequiresUnicodeMapping() = %v, want %v", level, got, want)
		}
	}
}

func TestValidateFlagsNonEmbeddedFont(t *testing.T) {
	doc, res := newEnforcerDoc("")
	addResourceFont(doc, res, "F1", helveticaDict())

	report, err := newTestEnforcer().Validate(context.Background(), doc, PDFA2B)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.Compliant {
		t.Fatalf("non-embedded font passed validation")
	}
	if report.Standard != "PDF/A-2b" {
		t.Errorf("Standard = %q", report.Standard)
	}
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %+v", report.Violations)
	}
	v := report.Violations[0]
	if v.Code != ruleNotEmbedded {
		t.Errorf("Code = %q, want %q", v.Code, ruleNotEmbedded)
	}
	if v.Location == "" {
		t.Errorf("violation carries no location")
	}
}

func TestValidateAcceptsType3(t *testing.T) {
	doc, res := newEnforcerDoc("")
	t3 := raw.Dict()
	t3.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	t3.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type3"))
	t3.Set(raw.NameLiteral("CharProcs"), raw.Dict())
	addResourceFont(doc, res, "F1", t3)

	report, err := newTestEnforcer().Validate(context.Background(), doc, PDFA2B)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.Compliant {
		t.Fatalf("Type3 font flagged: %+v", report.Violations)
	}
}

func TestEnforceRecordsEmbeddingFailure(t *testing.T) {
	doc, res := newEnforcerDoc("BT /F1 12 Tf (A) Tj ET")
	addResourceFont(doc, res, "F1", helveticaDict())

	report, err := newTestEnforcer().Enforce(context.Background(), doc, PDFA1B)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "Helvetica" {
		t.Fatalf("Failed = %v", report.Failed)
	}
	if len(report.Warnings) == 0 {
		t.Errorf("embedding failure produced no warning")
	}
	// PDF/A-1b does not require Unicode mapping, so gap filling is off.
	if report.ToUnicodeFilled != 0 {
		t.Errorf("ToUnicodeFilled = %d on a b-level", report.ToUnicodeFilled)
	}
}

func TestEnforceFillsUnicodeOnULevels(t *testing.T) {
	doc, res := newEnforcerDoc("BT /F1 12 Tf (A) Tj ET")
	addResourceFont(doc, res, "F1", helveticaDict())

	report, err := newTestEnforcer().Enforce(context.Background(), doc, PDFA2U)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if report.ToUnicodeFilled != 1 {
		t.Errorf("ToUnicodeFilled = %d, want 1", report.ToUnicodeFilled)
	}
	if report.Level != PDFA2U {
		t.Errorf("Level = %v", report.Level)
	}
}
