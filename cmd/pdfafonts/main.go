package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wudi/pdfarchive/compliance/pdfa"
	"github.com/wudi/pdfarchive/ir/raw"
	"github.com/wudi/pdfarchive/observability"
	"github.com/wudi/pdfarchive/writer"
)

type options struct {
	pdfPath      string
	outPath      string
	level        pdfa.Level
	validateOnly bool
	fontDirs     []string
	verbose      bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfafonts: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfafonts: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfafonts [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	level := flag.String("level", "2b", "PDF/A conformance level (1a, 1b, 2a, 2b, 2u, 3a, 3b, 3u, 4, 4e, 4f)")
	out := flag.String("o", "", "Output path (default: <input>.pdfa.pdf)")
	validate := flag.Bool("validate", false, "Report font violations without rewriting")
	fontDirs := flag.String("fontdirs", "", "Colon-separated directories searched for replacement fonts")
	verbose := flag.Bool("v", false, "Log each repair to stderr")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.outPath = *out
	if opts.outPath == "" {
		opts.outPath = strings.TrimSuffix(opts.pdfPath, ".pdf") + ".pdfa.pdf"
	}
	l, ok := pdfa.ParseLevel(*level)
	if !ok {
		return options{}, fmt.Errorf("unknown conformance level %q", *level)
	}
	opts.level = l
	opts.validateOnly = *validate
	if *fontDirs != "" {
		opts.fontDirs = strings.Split(*fontDirs, ":")
	}
	opts.verbose = *verbose
	return opts, nil
}

func run(opts options) error {
	file, err := os.Open(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var log observability.Logger = observability.NopLogger{}
	if opts.verbose {
		log = stderrLogger{}
	}

	ctx := context.Background()
	doc, err := raw.NewParser(raw.ParserConfig{Log: log}).Parse(ctx, file)
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}

	enforcer := pdfa.NewFontEnforcer(pdfa.EnforcerConfig{Log: log, FontDirs: opts.fontDirs})

	if opts.validateOnly {
		report, err := enforcer.Validate(ctx, doc, opts.level)
		if err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		if err := emitJSON(report); err != nil {
			return err
		}
		if !report.Compliant {
			return fmt.Errorf("%d font violations against %s", len(report.Violations), opts.level)
		}
		return nil
	}

	report, err := enforcer.Enforce(ctx, doc, opts.level)
	if err != nil {
		return fmt.Errorf("enforce %s: %w", opts.level, err)
	}
	if err := emitJSON(report); err != nil {
		return err
	}

	outFile, err := os.Create(opts.outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer outFile.Close()
	cfg := writer.Config{Producer: "pdfarchive"}
	if err := writer.New().Write(ctx, doc, outFile, cfg); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func emitJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Printf("%s\n", data)
	return nil
}

// stderrLogger is the CLI's verbose sink.
type stderrLogger struct{ fields []observability.Field }

func (l stderrLogger) log(level, msg string, fields []observability.Field) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", level, msg)
	for _, f := range append(l.fields, fields...) {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	fmt.Fprintln(os.Stderr, b.String())
}

func (l stderrLogger) Debug(msg string, fields ...observability.Field) { l.log("DBG", msg, fields) }
func (l stderrLogger) Info(msg string, fields ...observability.Field)  { l.log("INF", msg, fields) }
func (l stderrLogger) Warn(msg string, fields ...observability.Field)  { l.log("WRN", msg, fields) }
func (l stderrLogger) Error(msg string, fields ...observability.Field) { l.log("ERR", msg, fields) }
func (l stderrLogger) With(fields ...observability.Field) observability.Logger {
	return stderrLogger{fields: append(append([]observability.Field{}, l.fields...), fields...)}
}
