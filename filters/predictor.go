package filters

import (
	"errors"

	"github.com/wudi/pdfarchive/ir/raw"
)

// applyPredictor undoes the PNG/TIFF predictor transforms described by a
// /DecodeParms dictionary. Predictor 1 (or no params) is the identity.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor := dictInt(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := dictInt(params, "Colors", 1)
	bpc := dictInt(params, "BitsPerComponent", 8)
	columns := dictInt(params, "Columns", 1)

	bytesPerPixel := (colors*bpc + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}
	rowLen := (colors*bpc*columns + 7) / 8
	if rowLen < 1 {
		return nil, errors.New("invalid predictor row length")
	}

	if predictor == 2 {
		return applyTIFFPredictor(data, colors, bpc, columns)
	}
	return applyPNGPredictor(data, bytesPerPixel, rowLen)
}

func applyTIFFPredictor(data []byte, colors, bpc, columns int) ([]byte, error) {
	if bpc != 8 {
		// Sub-byte TIFF prediction is not produced by any mainstream
		// writer; pass through rather than corrupt.
		return data, nil
	}
	rowLen := colors * columns
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row+rowLen <= len(out); row += rowLen {
		for i := colors; i < rowLen; i++ {
			out[row+i] += out[row+i-colors]
		}
	}
	return out, nil
}

func applyPNGPredictor(data []byte, bytesPerPixel, rowLen int) ([]byte, error) {
	stride := rowLen + 1 // leading filter-type byte per row
	if len(data)%stride != 0 {
		// Tolerate a truncated final row.
		data = data[:len(data)/stride*stride]
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)

	for r := 0; r < rows; r++ {
		rowIn := data[r*stride : (r+1)*stride]
		filter := rowIn[0]
		row := make([]byte, rowLen)
		copy(row, rowIn[1:])

		switch filter {
		case 0: // None
		case 1: // Sub
			for i := bytesPerPixel; i < rowLen; i++ {
				row[i] += row[i-bytesPerPixel]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
					upLeft = prev[i-bytesPerPixel]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, errors.New("unknown PNG filter type")
		}

		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func dictInt(dict raw.Dictionary, key string, def int) int {
	v, ok := dict.Get(raw.NameObj{Val: key})
	if !ok {
		return def
	}
	num, ok := v.(raw.Number)
	if !ok {
		return def
	}
	return int(num.Int())
}
