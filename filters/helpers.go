package filters

import "github.com/wudi/pdfarchive/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream
// dictionary, resolving indirect references through doc.
func ExtractFilters(doc *raw.Document, dict raw.Dictionary) ([]string, []raw.Dictionary) {
	var names []string
	var params []raw.Dictionary

	if dict == nil {
		return names, params
	}

	switch f := doc.DictGet(dict, "Filter").(type) {
	case raw.Name:
		names = append(names, f.Value())
	case raw.Array:
		for i := 0; i < f.Len(); i++ {
			if n, ok := doc.ArrayGet(f, i).(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}

	if len(names) == 0 {
		return names, params
	}

	switch p := doc.DictGet(dict, "DecodeParms").(type) {
	case raw.Dictionary:
		params = append(params, p)
	case raw.Array:
		for i := 0; i < p.Len(); i++ {
			d, _ := doc.ArrayGet(p, i).(raw.Dictionary)
			params = append(params, d) // nil keeps positions aligned
		}
	}

	return names, params
}
