package fonts

import (
	"context"
	"fmt"
	"sort"

	"github.com/wudi/pdfarchive/filters"
	"github.com/wudi/pdfarchive/ir/raw"
)

// CID font structure builder. Replacement fonts are embedded as Type0 /
// CIDFontType2 with Identity-H encoding, so character codes are glyph
// IDs directly.

// buildWArray compacts a GID→width map into the /W array form. Runs of
// at least four consecutive GIDs sharing a width use the range form
// "cFirst cLast w"; everything else is emitted as "c [w ...]".
func buildWArray(widths map[int]int) *raw.ArrayObj {
	gids := make([]int, 0, len(widths))
	for gid := range widths {
		gids = append(gids, gid)
	}
	sort.Ints(gids)

	out := raw.NewArray()
	i := 0
	for i < len(gids) {
		// Length of the run of consecutive GIDs with equal width.
		j := i + 1
		for j < len(gids) && gids[j] == gids[j-1]+1 && widths[gids[j]] == widths[gids[i]] {
			j++
		}
		if j-i >= 4 {
			out.Append(raw.NumberInt(int64(gids[i])))
			out.Append(raw.NumberInt(int64(gids[j-1])))
			out.Append(raw.NumberInt(int64(widths[gids[i]])))
			i = j
			continue
		}
		// Collect a list segment of consecutive GIDs (mixed widths).
		k := i + 1
		for k < len(gids) && gids[k] == gids[k-1]+1 {
			// Stop before a span that would qualify for the range form.
			run := k + 1
			for run < len(gids) && gids[run] == gids[run-1]+1 && widths[gids[run]] == widths[gids[k]] {
				run++
			}
			if run-k >= 4 {
				break
			}
			k++
		}
		out.Append(raw.NumberInt(int64(gids[i])))
		list := raw.NewArray()
		for _, gid := range gids[i:k] {
			list.Append(raw.NumberInt(int64(widths[gid])))
		}
		out.Append(list)
		i = k
	}
	return out
}

// glyphWidths1000 computes per-GID advance widths in 1000-unit space for
// the given GIDs.
func glyphWidths1000(f *sfntFont, gids map[int]bool) map[int]int {
	upem := f.unitsPerEm()
	out := make(map[int]int, len(gids))
	for gid := range gids {
		if adv, ok := f.glyphAdvance(gid); ok {
			out[gid] = adv * 1000 / upem
		}
	}
	return out
}

// defaultWidth1000 is the /DW value: the .notdef advance scaled to
// 1000-unit space, or 500 when unavailable.
func defaultWidth1000(f *sfntFont) int {
	if adv, ok := f.glyphAdvance(0); ok && adv > 0 {
		return adv * 1000 / f.unitsPerEm()
	}
	return 500
}

// embedType0 rewrites fontDict in place as a Type0/Identity-H font over
// the given TrueType program, appending the program stream, descriptor
// and descendant CIDFont to the document. usedGIDs selects the widths
// recorded in /W; toUnicode, when non-nil, is attached as a ToUnicode
// stream.
func (e *Engine) embedType0(ctx context.Context, doc *raw.Document, fontDict raw.Dictionary,
	baseName string, program []byte, symbolic bool, usedGIDs map[int]bool, toUnicode CodeMap) error {

	f, err := parseSfnt(program)
	if err != nil {
		return fmt.Errorf("parse replacement font: %w", err)
	}

	fileRef, err := e.addFontFile2(ctx, doc, program)
	if err != nil {
		return err
	}
	metrics := computeFaceMetrics(f, symbolic)
	fdRef := doc.Add(buildFontDescriptor(baseName, metrics, "FontFile2", fileRef))

	cidSystemInfo := raw.Dict()
	cidSystemInfo.Set(raw.NameLiteral("Registry"), raw.Str([]byte("Adobe")))
	cidSystemInfo.Set(raw.NameLiteral("Ordering"), raw.Str([]byte("Identity")))
	cidSystemInfo.Set(raw.NameLiteral("Supplement"), raw.NumberInt(0))

	descendant := raw.Dict()
	descendant.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	descendant.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))
	descendant.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(baseName))
	descendant.Set(raw.NameLiteral("CIDSystemInfo"), cidSystemInfo)
	descendant.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(fdRef.Num, fdRef.Gen))
	descendant.Set(raw.NameLiteral("DW"), raw.NumberInt(int64(defaultWidth1000(f))))
	if widths := glyphWidths1000(f, usedGIDs); len(widths) > 0 {
		descendant.Set(raw.NameLiteral("W"), buildWArray(widths))
	}
	descendant.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	descRef := doc.Add(descendant)

	// Rewrite the font dictionary itself; references to it elsewhere in
	// the document keep working.
	for _, key := range fontDict.Keys() {
		fontDict.Delete(key)
	}
	fontDict.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	fontDict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	fontDict.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(baseName))
	fontDict.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	fontDict.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.Ref(descRef.Num, descRef.Gen)))

	if len(toUnicode) > 0 {
		tuRef, err := e.addStream(ctx, doc, FormatToUnicode(toUnicode, 2))
		if err != nil {
			return err
		}
		fontDict.Set(raw.NameLiteral("ToUnicode"), raw.Ref(tuRef.Num, tuRef.Gen))
	}
	return nil
}

// addFontFile2 appends a Flate-compressed FontFile2 stream and returns
// its reference.
func (e *Engine) addFontFile2(ctx context.Context, doc *raw.Document, program []byte) (raw.ObjectRef, error) {
	compressed, err := filters.FlateEncode(program)
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("compress font program: %w", err)
	}
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(compressed))))
	dict.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(program))))
	return doc.Add(raw.NewStream(dict, compressed)), nil
}

// addStream appends a Flate-compressed stream and returns its reference.
func (e *Engine) addStream(ctx context.Context, doc *raw.Document, data []byte) (raw.ObjectRef, error) {
	compressed, err := filters.FlateEncode(data)
	if err != nil {
		return raw.ObjectRef{}, fmt.Errorf("compress stream: %w", err)
	}
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	dict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(compressed))))
	return doc.Add(raw.NewStream(dict, compressed)), nil
}
