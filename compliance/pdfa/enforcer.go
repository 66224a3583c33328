package pdfa

import (
	"context"
	"fmt"

	"github.com/wudi/pdfarchive/compliance"
	"github.com/wudi/pdfarchive/fonts"
	"github.com/wudi/pdfarchive/ir/raw"
	"github.com/wudi/pdfarchive/observability"
)

// FontEnforcer drives the font compliance stages of a PDF/A conversion:
// embedding, TrueType encoding repair, .notdef and glyph coverage, and
// ToUnicode sanitation. The same checks run read-only through Validate.
type FontEnforcer struct {
	engine *fonts.Engine
	log    observability.Logger
}

// EnforcerConfig configures a FontEnforcer.
type EnforcerConfig struct {
	Log      observability.Logger
	FontDirs []string
}

// NewFontEnforcer builds an enforcer with its own font engine.
func NewFontEnforcer(cfg EnforcerConfig) *FontEnforcer {
	log := cfg.Log
	if log == nil {
		log = observability.NopLogger{}
	}
	return &FontEnforcer{
		engine: fonts.New(fonts.Config{Log: log, FontDirs: cfg.FontDirs}),
		log:    log,
	}
}

// Engine exposes the underlying font engine.
func (fe *FontEnforcer) Engine() *fonts.Engine { return fe.engine }

// EnforcementReport counts what each stage changed.
type EnforcementReport struct {
	Level Level

	Embedded  []string
	Failed    []string
	Preserved []string

	EncodingsRepaired int
	NotdefInserted    int
	GlyphsCovered     int
	ToUnicodeCleaned  int
	ToUnicodeFilled   int

	Warnings []string
}

// Enforce rewrites doc so its fonts satisfy the given conformance
// level. Stages run in dependency order; replacement embedding first,
// since later stages inspect the programs it installs. Gap filling only
// runs on levels that require every used glyph to map to Unicode.
func (fe *FontEnforcer) Enforce(ctx context.Context, doc *raw.Document, level Level) (*EnforcementReport, error) {
	report := &EnforcementReport{Level: level}

	embed, err := fe.engine.EmbedMissingFonts(ctx, doc)
	if embed != nil {
		report.Embedded = embed.Embedded
		report.Failed = embed.Failed
		report.Preserved = embed.Preserved
		report.Warnings = append(report.Warnings, embed.Warnings...)
	}
	if err != nil {
		return report, fmt.Errorf("embed fonts: %w", err)
	}

	if report.EncodingsRepaired, err = fe.engine.FixTrueTypeEncodings(ctx, doc); err != nil {
		return report, fmt.Errorf("repair truetype encodings: %w", err)
	}
	if report.NotdefInserted, err = fe.engine.EnsureNotdef(ctx, doc); err != nil {
		return report, fmt.Errorf("ensure notdef: %w", err)
	}
	if report.GlyphsCovered, err = fe.engine.EnsureGlyphCoverage(ctx, doc); err != nil {
		return report, fmt.Errorf("ensure glyph coverage: %w", err)
	}
	if report.ToUnicodeCleaned, err = fe.engine.SanitizeToUnicode(ctx, doc); err != nil {
		return report, fmt.Errorf("sanitize tounicode: %w", err)
	}
	if level.RequiresUnicodeMapping() {
		if report.ToUnicodeFilled, err = fe.engine.FillToUnicodeGaps(ctx, doc); err != nil {
			return report, fmt.Errorf("fill tounicode gaps: %w", err)
		}
	}

	fe.log.Info("font enforcement complete",
		observability.String("level", level.String()),
		observability.Int("embedded", len(report.Embedded)),
		observability.Int("failed", len(report.Failed)))
	return report, nil
}

// Rule codes follow the ISO 19005 clause numbering veraPDF reports.
const (
	ruleNotEmbedded      = "6.2.11.4-1"
	ruleEncodingTrueType = "6.2.11.6-2"
	ruleNotdefMissing    = "6.3.3-1"
	ruleToUnicodeValue   = "6.2.11.7.2-1"
	ruleToUnicodeAbsent  = "6.2.11.7.2-2"
)

// Validate runs the font checks read-only and reports every breach.
func (fe *FontEnforcer) Validate(ctx context.Context, doc *raw.Document, level Level) (*compliance.Report, error) {
	report := &compliance.Report{Compliant: true, Standard: level.String()}
	add := func(code, desc, loc string) {
		report.Compliant = false
		report.Violations = append(report.Violations, compliance.Violation{
			Code: code, Description: desc, Location: loc,
		})
	}

	var usage *fonts.Usage
	if level.RequiresUnicodeMapping() {
		usage = fe.engine.CollectUsage(ctx, doc)
	}

	for _, fr := range fonts.CollectFonts(doc) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		info := fe.engine.AnalyzeFont(ctx, doc, fr.Dict)
		loc := fr.Ref.String()
		name := fonts.StripSubsetTag(info.BaseFont)

		if info.Kind != fonts.KindType3 && !info.Embedded {
			add(ruleNotEmbedded,
				fmt.Sprintf("font %q is not embedded", name), loc)
			continue
		}

		if info.Kind == fonts.KindTrueType {
			if v := fe.engine.CheckTrueTypeEncoding(ctx, doc, fr.Dict, info); v != "" {
				add(ruleEncodingTrueType, v, loc)
			}
		}
		if info.Embedded && info.Kind != fonts.KindType3 {
			if ok, err := fe.engine.HasNotdef(ctx, doc, info); err == nil && !ok {
				add(ruleNotdefMissing,
					fmt.Sprintf("font %q has no .notdef glyph", name), loc)
			}
		}

		if bad := fe.engine.ToUnicodeViolations(ctx, doc, fr.Dict); bad > 0 {
			add(ruleToUnicodeValue,
				fmt.Sprintf("font %q maps %d codes to forbidden Unicode values", name, bad), loc)
		}
		if usage != nil {
			if missing := fe.engine.MissingUnicode(ctx, doc, fr, info, usage); missing > 0 {
				add(ruleToUnicodeAbsent,
					fmt.Sprintf("font %q has %d used codes without Unicode mapping", name, missing), loc)
			}
		}
	}
	return report, nil
}
