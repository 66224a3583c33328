package raw

// Resolution helpers. The font compliance code walks deeply nested
// dictionary structures where nearly every value may be an indirect
// reference; these helpers collapse the reference-or-value distinction.

// Resolve follows indirect references until a concrete object is reached.
// Broken references resolve to nil. Reference chains longer than 32 hops
// are treated as broken.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.Ref()]
		if !ok {
			return nil
		}
		obj = next
	}
	return nil
}

// RefOf returns the ObjectRef identity of obj when it is a reference,
// and ok=false for direct objects (which have no stable identity).
func RefOf(obj Object) (ObjectRef, bool) {
	if ref, ok := obj.(Reference); ok {
		return ref.Ref(), true
	}
	return ObjectRef{}, false
}

// ResolveDict resolves obj and asserts it is a dictionary.
func (d *Document) ResolveDict(obj Object) (Dictionary, bool) {
	dict, ok := d.Resolve(obj).(Dictionary)
	return dict, ok
}

// ResolveArray resolves obj and asserts it is an array.
func (d *Document) ResolveArray(obj Object) (Array, bool) {
	arr, ok := d.Resolve(obj).(Array)
	return arr, ok
}

// ResolveStream resolves obj and asserts it is a stream.
func (d *Document) ResolveStream(obj Object) (Stream, bool) {
	st, ok := d.Resolve(obj).(Stream)
	return st, ok
}

// DictGet resolves dict[key], following references.
func (d *Document) DictGet(dict Dictionary, key string) Object {
	if dict == nil {
		return nil
	}
	v, ok := dict.Get(NameObj{Val: key})
	if !ok {
		return nil
	}
	return d.Resolve(v)
}

// DictGetRaw returns dict[key] without resolving references.
func DictGetRaw(dict Dictionary, key string) Object {
	if dict == nil {
		return nil
	}
	v, ok := dict.Get(NameObj{Val: key})
	if !ok {
		return nil
	}
	return v
}

// DictGetDict resolves dict[key] to a dictionary.
func (d *Document) DictGetDict(dict Dictionary, key string) (Dictionary, bool) {
	v, ok := d.DictGet(dict, key).(Dictionary)
	return v, ok
}

// DictGetArray resolves dict[key] to an array.
func (d *Document) DictGetArray(dict Dictionary, key string) (Array, bool) {
	v, ok := d.DictGet(dict, key).(Array)
	return v, ok
}

// DictGetStream resolves dict[key] to a stream.
func (d *Document) DictGetStream(dict Dictionary, key string) (Stream, bool) {
	v, ok := d.DictGet(dict, key).(Stream)
	return v, ok
}

// DictGetName resolves dict[key] to a name value (without slash).
func (d *Document) DictGetName(dict Dictionary, key string) (string, bool) {
	v, ok := d.DictGet(dict, key).(Name)
	if !ok {
		return "", false
	}
	return v.Value(), true
}

// DictGetInt resolves dict[key] to an integer.
func (d *Document) DictGetInt(dict Dictionary, key string) (int64, bool) {
	v, ok := d.DictGet(dict, key).(Number)
	if !ok {
		return 0, false
	}
	return v.Int(), true
}

// DictGetString resolves dict[key] to a string value.
func (d *Document) DictGetString(dict Dictionary, key string) ([]byte, bool) {
	v, ok := d.DictGet(dict, key).(String)
	if !ok {
		return nil, false
	}
	return v.Value(), true
}

// ArrayGet resolves arr[i], following references.
func (d *Document) ArrayGet(arr Array, i int) Object {
	if arr == nil {
		return nil
	}
	v, ok := arr.Get(i)
	if !ok {
		return nil
	}
	return d.Resolve(v)
}

// Catalog returns the document catalog dictionary from the trailer.
func (d *Document) Catalog() (Dictionary, bool) {
	if d.Trailer == nil {
		return nil, false
	}
	return d.DictGetDict(d.Trailer, "Root")
}

// Pages returns the page dictionaries in tree order. Malformed page tree
// nodes are skipped; cycles in /Kids are broken by ref identity.
func (d *Document) Pages() []Dictionary {
	catalog, ok := d.Catalog()
	if !ok {
		return nil
	}
	rootObj := DictGetRaw(catalog, "Pages")
	var pages []Dictionary
	visited := make(map[ObjectRef]bool)
	d.collectPages(rootObj, visited, &pages, 0)
	return pages
}

func (d *Document) collectPages(node Object, visited map[ObjectRef]bool, pages *[]Dictionary, depth int) {
	if depth > 64 {
		return
	}
	if ref, ok := RefOf(node); ok {
		if visited[ref] {
			return
		}
		visited[ref] = true
	}
	dict, ok := d.ResolveDict(node)
	if !ok {
		return
	}
	typ, _ := d.DictGetName(dict, "Type")
	kids, hasKids := d.DictGetArray(dict, "Kids")
	if typ == "Page" || !hasKids {
		if typ == "Page" || typ == "" {
			*pages = append(*pages, dict)
		}
		return
	}
	for i := 0; i < kids.Len(); i++ {
		kid, _ := kids.Get(i)
		d.collectPages(kid, visited, pages, depth+1)
	}
}
