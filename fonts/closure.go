package fonts

import (
	"bytes"
	"fmt"

	"github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/font/opentype/tables"
)

// gsubClosure expands a glyph set with every glyph reachable through
// the font's GSUB substitutions, so subsetting cannot strand a ligature
// or stylistic alternate the text could still trigger. Fonts without a
// GSUB table get the initial set back unchanged.
func gsubClosure(fontData []byte, initial map[int]bool) (map[int]bool, error) {
	ld, err := opentype.NewLoader(bytes.NewReader(fontData))
	if err != nil {
		return nil, fmt.Errorf("open font: %w", err)
	}

	keep := make(map[int]bool, len(initial))
	for gid := range initial {
		keep[gid] = true
	}

	gsubTag := opentype.NewTag('G', 'S', 'U', 'B')
	if !ld.HasTable(gsubTag) {
		return keep, nil
	}
	raw, err := ld.RawTable(gsubTag)
	if err != nil {
		return nil, fmt.Errorf("read GSUB: %w", err)
	}
	layout, _, err := tables.ParseLayout(raw)
	if err != nil {
		return nil, fmt.Errorf("parse GSUB: %w", err)
	}

	st := &closureState{keep: keep}
	for _, lookup := range layout.LookupList.Lookups {
		subs, err := lookup.AsGSUBLookups()
		if err != nil {
			// Unparsable lookups cannot produce glyphs we could keep.
			subs = nil
		}
		st.lookups = append(st.lookups, subs)
	}

	// Fixed point: substituted glyphs may themselves be substitution
	// inputs.
	for {
		st.changed = false
		snapshot := make([]uint16, 0, len(st.keep))
		for gid := range st.keep {
			snapshot = append(snapshot, uint16(gid))
		}
		st.visiting = make(map[int]bool)
		for i := range st.lookups {
			st.runLookup(i, snapshot)
		}
		if !st.changed {
			return st.keep, nil
		}
	}
}

// closureState carries the glyph set through one fixed-point pass.
// visiting guards against contextual lookups that reference each other.
type closureState struct {
	keep     map[int]bool
	lookups  [][]tables.GSUBLookup
	visiting map[int]bool
	changed  bool
}

func (st *closureState) add(gid int) {
	if !st.keep[gid] {
		st.keep[gid] = true
		st.changed = true
	}
}

func (st *closureState) runLookup(idx int, gids []uint16) {
	if idx < 0 || idx >= len(st.lookups) || st.visiting[idx] {
		return
	}
	st.visiting[idx] = true
	for _, sub := range st.lookups[idx] {
		st.runSubtable(sub, gids)
	}
	st.visiting[idx] = false
}

func (st *closureState) runSubtable(sub tables.GSUBLookup, gids []uint16) {
	cov := sub.Cov()
	for _, gid := range gids {
		idx, ok := cov.Index(tables.GlyphID(gid))
		if !ok {
			continue
		}

		switch t := sub.(type) {
		case tables.SingleSubs:
			switch d := t.Data.(type) {
			case tables.SingleSubstData1:
				st.add(int(gid) + int(d.DeltaGlyphID))
			case tables.SingleSubstData2:
				if idx < len(d.SubstituteGlyphIDs) {
					st.add(int(d.SubstituteGlyphIDs[idx]))
				}
			}

		case tables.MultipleSubs:
			if idx < len(t.Sequences) {
				for _, out := range t.Sequences[idx].SubstituteGlyphIDs {
					st.add(int(out))
				}
			}

		case tables.AlternateSubs:
			if idx < len(t.AlternateSets) {
				for _, out := range t.AlternateSets[idx].AlternateGlyphIDs {
					st.add(int(out))
				}
			}

		case tables.LigatureSubs:
			if idx < len(t.LigatureSets) {
				for _, lig := range t.LigatureSets[idx].Ligatures {
					// A ligature forms only when every component glyph
					// is kept.
					all := true
					for _, comp := range lig.ComponentGlyphIDs {
						if !st.keep[int(comp)] {
							all = false
							break
						}
					}
					if all {
						st.add(int(lig.LigatureGlyph))
					}
				}
			}

		case tables.ExtensionSubs:
			st.runExtension(tables.Extension(t), gid)

		case tables.ContextualSubs:
			st.runContextual(t.Data, idx, gids)

		case tables.ChainedContextualSubs:
			st.runChainedContextual(t.Data, idx, gids)

		case tables.ReverseChainSingleSubs:
			if idx < len(t.SubstituteGlyphIDs) {
				st.add(int(t.SubstituteGlyphIDs[idx]))
			}
		}
	}
}

// runExtension unwraps a type 7 lookup and runs the inner subtable.
// Contextual extensions (5, 6, 8) are rare enough behind extensions
// that they are left to the direct cases.
func (st *closureState) runExtension(ext tables.Extension, gid uint16) {
	if int(ext.ExtensionOffset) >= len(ext.RawData) {
		return
	}
	data := ext.RawData[ext.ExtensionOffset:]
	var inner tables.GSUBLookup
	var err error
	switch ext.ExtensionLookupType {
	case 1:
		inner, _, err = tables.ParseSingleSubs(data)
	case 2:
		inner, _, err = tables.ParseMultipleSubs(data)
	case 3:
		inner, _, err = tables.ParseAlternateSubs(data)
	case 4:
		inner, _, err = tables.ParseLigatureSubs(data)
	default:
		return
	}
	if err == nil && inner != nil {
		st.runSubtable(inner, []uint16{gid})
	}
}

func (st *closureState) runContextual(data tables.ContextualSubsITF, covIdx int, gids []uint16) {
	switch t := data.(type) {
	case tables.ContextualSubs1:
		f := tables.SequenceContextFormat1(t)
		if covIdx >= 0 && covIdx < len(f.SeqRuleSet) {
			st.runRuleSet(f.SeqRuleSet[covIdx], gids)
		}
	case tables.ContextualSubs2:
		f := tables.SequenceContextFormat2(t)
		for _, set := range f.ClassSeqRuleSet {
			st.runRuleSet(set, gids)
		}
	case tables.ContextualSubs3:
		f := tables.SequenceContextFormat3(t)
		st.runRecords(f.SeqLookupRecords, gids)
	}
}

func (st *closureState) runChainedContextual(data tables.ChainedContextualSubsITF, covIdx int, gids []uint16) {
	switch t := data.(type) {
	case tables.ChainedContextualSubs1:
		f := tables.ChainedSequenceContextFormat1(t)
		if covIdx >= 0 && covIdx < len(f.ChainedSeqRuleSet) {
			st.runChainedRuleSet(f.ChainedSeqRuleSet[covIdx], gids)
		}
	case tables.ChainedContextualSubs2:
		f := tables.ChainedSequenceContextFormat2(t)
		for _, set := range f.ChainedClassSeqRuleSet {
			st.runChainedRuleSet(set, gids)
		}
	case tables.ChainedContextualSubs3:
		f := tables.ChainedSequenceContextFormat3(t)
		st.runRecords(f.SeqLookupRecords, gids)
	}
}

func (st *closureState) runRuleSet(set tables.SequenceRuleSet, gids []uint16) {
	for _, rule := range set.SeqRule {
		st.runRecords(rule.SeqLookupRecords, gids)
	}
}

func (st *closureState) runChainedRuleSet(set tables.ChainedSequenceRuleSet, gids []uint16) {
	for _, rule := range set.ChainedSeqRules {
		st.runRecords(rule.SeqLookupRecords, gids)
	}
}

func (st *closureState) runRecords(records []tables.SequenceLookupRecord, gids []uint16) {
	for _, rec := range records {
		st.runLookup(int(rec.LookupListIndex), gids)
	}
}
