package scanner

import (
	"bytes"
	"testing"

	"github.com/wudi/pdfarchive/recovery"
)

// FuzzScan drives the lexer over arbitrary bytes twice, strict and
// lenient. Both runs must terminate; the lenient one exercises the
// salvage paths that strict mode never reaches.
func FuzzScan(f *testing.F) {
	f.Add([]byte("%PDF-1.7\n1 0 obj\n<< /Type /Page >>\nendobj"))
	f.Add([]byte("[ 1 2.5 (lit\\)eral) <4142> /N#41me 3 0 R ]"))
	f.Add([]byte("stream\n...data...\nendstream"))
	f.Add([]byte("ID \nbinary\nEI"))
	f.Add([]byte("(unterminated"))
	f.Add([]byte("<< /K [ << /V"))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg := Config{
			MaxNameLength:   256,
			MaxStringLength: 1024,
			MaxArrayDepth:   10,
			MaxDictDepth:    10,
			MaxStreamLength: 1024,
			MaxStreamScan:   1024,
			MaxInlineImage:  1024,
			WindowSize:      64,
		}
		for _, strategy := range []recovery.Strategy{nil, recovery.NewLenientStrategy()} {
			cfg.Recovery = strategy
			s := New(bytes.NewReader(data), cfg)
			for i := 0; i < len(data)+16; i++ {
				if _, err := s.Next(); err != nil {
					break
				}
			}
		}
	})
}
