package fonts

import (
	"context"
	"fmt"
	"sort"

	"github.com/wudi/pdfarchive/ir/raw"
)

// OS/2 fsType bits.
const (
	fsTypeRestricted   = 0x0002
	fsTypePreviewPrint = 0x0004
	fsTypeNoSubsetting = 0x0100
	fsTypeBitmapOnly   = 0x0200
)

// checkEmbeddingRights inspects a replacement face's fsType bits. A
// Restricted License face cannot be embedded at all; the other bits
// produce warnings only.
func checkEmbeddingRights(f *sfntFont, name string) (warnings []string, noSubset bool, err error) {
	fsType := f.fsType()
	if fsType&fsTypeRestricted != 0 {
		return nil, false, fmt.Errorf("%w: %s", ErrEmbeddingRestricted, name)
	}
	if fsType&fsTypePreviewPrint != 0 {
		warnings = append(warnings, fmt.Sprintf("font %q allows preview & print embedding only", name))
	}
	if fsType&fsTypeBitmapOnly != 0 {
		warnings = append(warnings, fmt.Sprintf("font %q allows bitmap embedding only", name))
	}
	if fsType&fsTypeNoSubsetting != 0 {
		warnings = append(warnings, fmt.Sprintf("font %q forbids subsetting", name))
		noSubset = true
	}
	return warnings, noSubset, nil
}

// invertCmap builds a GID→Unicode view of a rune→GID mapping. When
// several runes share a glyph the lowest wins, keeping the result
// deterministic.
func invertCmap(mapping map[rune]uint16) map[uint16]rune {
	out := make(map[uint16]rune, len(mapping))
	for r, gid := range mapping {
		if prev, ok := out[gid]; !ok || r < prev {
			out[gid] = r
		}
	}
	return out
}

// EmbedMissingFonts walks every font in the document and embeds a
// replacement program for each one that lacks a valid embedded font
// file. Simple fonts are rewritten in place as TrueType fonts over a
// metrically compatible Liberation face; composite fonts are rebuilt as
// Type0/Identity-H over a Noto CJK face chosen by their CIDSystemInfo
// ordering. Type3 fonts define glyphs as content streams and are always
// preserved.
func (e *Engine) EmbedMissingFonts(ctx context.Context, doc *raw.Document) (*EmbeddingResult, error) {
	result := &EmbeddingResult{}
	recorded := make(map[string]bool)
	record := func(list *[]string, name string) {
		key := fmt.Sprintf("%p:%s", list, name)
		if !recorded[key] {
			recorded[key] = true
			*list = append(*list, name)
		}
	}

	usage := e.CollectUsage(ctx, doc)

	for _, fr := range CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		info := e.AnalyzeFont(ctx, doc, fr.Dict)
		name := StripSubsetTag(info.BaseFont)
		if name == "" {
			name = "Unknown"
		}

		if info.Kind == KindType3 || info.Embedded {
			record(&result.Preserved, name)
			continue
		}

		var err error
		var warnings []string
		if info.Kind == KindType0 {
			warnings, err = e.replaceComposite(ctx, doc, fr, info, usage)
		} else {
			warnings, err = e.replaceSimple(ctx, doc, fr, info)
		}
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			e.log.Warn("font replacement failed", fieldStr("font", name), fieldErr(err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not embed %q: %v", name, err))
			record(&result.Failed, name)
			continue
		}
		e.log.Info("embedded replacement font", fieldStr("font", name))
		record(&result.Embedded, name)
	}
	return result, nil
}

// replaceSimple embeds a replacement face for a Type1/TrueType/MMType1
// font, rewriting the font dictionary in place as a simple TrueType
// font.
func (e *Engine) replaceSimple(ctx context.Context, doc *raw.Document, fr FontRef, info *FontInfo) ([]string, error) {
	name := StripSubsetTag(info.BaseFont)
	file, exact := replacementFile(name)
	var warnings []string
	if !exact {
		warnings = append(warnings, fmt.Sprintf(
			"no specific replacement for font %q, using %s as fallback", name, file))
	}
	program, err := e.loader.Load(file)
	if err != nil {
		return warnings, err
	}
	f, err := parseSfnt(program)
	if err != nil {
		return warnings, fmt.Errorf("parse replacement %s: %w", file, err)
	}
	rightWarnings, noSubset, err := checkEmbeddingRights(f, file)
	warnings = append(warnings, rightWarnings...)
	if err != nil {
		return warnings, err
	}

	codeToRune := WinAnsiToRune
	symbolFace := false
	switch name {
	case "Symbol":
		codeToRune = SymbolCodeToRune
		symbolFace = true
	case "ZapfDingbats":
		codeToRune = DingbatsCodeToRune
		symbolFace = true
	}
	if !noSubset {
		program, f = e.subsetReplacement(program, f, simpleUsedGIDs(f, codeToRune))
	}
	return warnings, e.embedSimpleTrueType(ctx, doc, fr.Dict, name, program, f, codeToRune, symbolFace)
}

// simpleUsedGIDs collects the glyph IDs a simple font's 256 codes reach
// through the face's Unicode cmap.
func simpleUsedGIDs(f *sfntFont, codeToRune func(byte) (rune, bool)) map[int]bool {
	mapping := unicodeMapping(f)
	used := make(map[int]bool, 256)
	for code := 0; code < 256; code++ {
		if r, ok := codeToRune(byte(code)); ok {
			if gid, ok := mapping[r]; ok {
				used[int(gid)] = true
			}
		}
	}
	return used
}

// subsetReplacement drops unused outlines from a replacement face before
// it is embedded, keeping glyph IDs stable. A face that cannot be
// subset is embedded whole.
func (e *Engine) subsetReplacement(program []byte, f *sfntFont, used map[int]bool) ([]byte, *sfntFont) {
	sub, err := SubsetTrueType(program, used)
	if err != nil {
		e.log.Warn("subsetting failed, embedding full face", fieldErr(err))
		return program, f
	}
	fs, err := parseSfnt(sub)
	if err != nil {
		return program, f
	}
	return sub, fs
}

// embedSimpleTrueType rewrites fontDict as a simple TrueType font over
// program. codeToRune defines the byte encoding the document text uses;
// for the standard text faces this is WinAnsi and the dictionary gets
// /Encoding /WinAnsiEncoding, while symbol faces get an /Encoding
// dictionary with /Differences naming each mapped code.
func (e *Engine) embedSimpleTrueType(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary,
	name string, program []byte, f *sfntFont, codeToRune func(byte) (rune, bool), symbolFace bool) error {

	mapping := unicodeMapping(f)
	upem := f.unitsPerEm()

	fileRef, fileKey, err := e.addFontProgram(ctx, doc, program)
	if err != nil {
		return err
	}
	metrics := computeFaceMetrics(f, false)
	fdRef := doc.Add(buildFontDescriptor(name, metrics, fileKey, fileRef))

	widths := raw.NewArray()
	toUnicode := make(CodeMap)
	mappedCodes := make([]int, 0, 256)
	for code := 0; code < 256; code++ {
		w := 0
		if r, ok := codeToRune(byte(code)); ok {
			toUnicode[uint32(code)] = []rune{r}
			if gid, ok := mapping[r]; ok {
				mappedCodes = append(mappedCodes, code)
				if adv, ok := f.glyphAdvance(int(gid)); ok {
					w = adv * 1000 / upem
				}
			}
		}
		widths.Append(raw.NumberInt(int64(w)))
	}

	for _, key := range fontDict.Keys() {
		fontDict.Delete(key)
	}
	fontDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	fontDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("TrueType"))
	fontDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(name))
	fontDict.Set(raw.NameLiteral("FirstChar"), raw.NumberInt(0))
	fontDict.Set(raw.NameLiteral("LastChar"), raw.NumberInt(255))
	fontDict.Set(raw.NameLiteral("Widths"), widths)
	fontDict.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(fdRef.Num, fdRef.Gen))

	if symbolFace {
		// The document's codes follow the original face's built-in
		// encoding; expose them through AGL-resolvable Differences.
		enc := raw.Dict()
		enc.Set(raw.NameLiteral("Type"), raw.NameLiteral("Encoding"))
		enc.Set(raw.NameLiteral("BaseEncoding"), raw.NameLiteral("WinAnsiEncoding"))
		diffs := raw.NewArray()
		sort.Ints(mappedCodes)
		prev := -2
		for _, code := range mappedCodes {
			r, _ := codeToRune(byte(code))
			if code != prev+1 {
				diffs.Append(raw.NumberInt(int64(code)))
			}
			diffs.Append(raw.NameLiteral(RuneToGlyphName(r)))
			prev = code
		}
		enc.Set(raw.NameLiteral("Differences"), diffs)
		fontDict.Set(raw.NameLiteral("Encoding"), enc)
	} else {
		fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	}

	tuRef, err := e.addStream(ctx, doc, FormatToUnicode(toUnicode, 1))
	if err != nil {
		return err
	}
	fontDict.Set(raw.NameLiteral("ToUnicode"), raw.Ref(tuRef.Num, tuRef.Gen))
	return nil
}

// replaceComposite embeds a CJK face for a non-embedded Type0 font,
// rebuilding the Type0 hierarchy with Identity encoding.
func (e *Engine) replaceComposite(ctx context.Context, doc *raw.Document, fr FontRef, info *FontInfo, usage *Usage) ([]string, error) {
	ordering := "Identity"
	if info.Descendant != nil {
		if csi, ok := doc.DictGetDict(info.Descendant, "CIDSystemInfo"); ok {
			if ord, ok := doc.DictGetString(csi, "Ordering"); ok {
				ordering = string(ord)
			}
		}
	}

	program, err := e.loader.CJKReplacement(ordering)
	if err != nil {
		return nil, err
	}
	f, err := parseSfnt(program)
	if err != nil {
		return nil, fmt.Errorf("parse replacement face: %w", err)
	}
	warnings, noSubset, err := checkEmbeddingRights(f, "NotoSansCJK")
	if err != nil {
		return warnings, err
	}

	// Widths for the CIDs the document uses; absent usage data, cover
	// every glyph in the face. With Identity encoding the codes are GIDs,
	// so usage data also drives subsetting of the replacement face.
	usedGIDs := make(map[int]bool)
	if used := usage.For(doc, fr); len(used) > 0 {
		for code := range used {
			usedGIDs[int(code)] = true
		}
		if !noSubset {
			program, f = e.subsetReplacement(program, f, usedGIDs)
		}
	} else {
		for gid := 0; gid < f.numGlyphs(); gid++ {
			usedGIDs[gid] = true
		}
	}

	toUnicode := make(CodeMap)
	for gid, r := range invertCmap(unicodeMapping(f)) {
		toUnicode[uint32(gid)] = []rune{r}
	}

	name := StripSubsetTag(info.BaseFont)
	return warnings, e.embedType0(ctx, doc, fr.Dict, name, program, info.Symbolic, usedGIDs, toUnicode)
}

// replacementFile picks a replacement file for a simple font. exact is
// true when the name matched the standard-14 table (or a clear family
// guess was possible).
func replacementFile(name string) (file string, exact bool) {
	if file, ok := standardReplacements[name]; ok {
		return file, true
	}
	return ReplacementFor(name), false
}

// addFontProgram appends a font program stream under the descriptor key
// its container format requires: glyf-based fonts as FontFile2, CFF
// based OpenType as FontFile3/OpenType.
func (e *Engine) addFontProgram(ctx context.Context, doc *raw.Document, program []byte) (raw.ObjectRef, string, error) {
	if len(program) >= 4 && string(program[:4]) == "OTTO" {
		ref, err := e.addStreamWithSubtype(ctx, doc, program, "OpenType")
		return ref, "FontFile3", err
	}
	ref, err := e.addFontFile2(ctx, doc, program)
	return ref, "FontFile2", err
}

func (e *Engine) addStreamWithSubtype(ctx context.Context, doc *raw.Document, data []byte, subtype string) (raw.ObjectRef, error) {
	ref, err := e.addStream(ctx, doc, data)
	if err != nil {
		return ref, err
	}
	if st, ok := doc.Objects[ref].(raw.Stream); ok {
		st.Dictionary().Set(raw.NameLiteral("Subtype"), raw.NameLiteral(subtype))
	}
	return ref, nil
}
