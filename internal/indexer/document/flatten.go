package document

import "strings"

// Meta is the display projection kept for every document.
type Meta struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Leaves collects every scalar reachable from v in traversal order: object
// members in source order, array elements in sequence order. A repeated key
// is visited once, at its first position, with its last value. Null
// contributes nothing.
func Leaves(v Value) []string {
	var out []string
	walk(v, func(s string) { out = append(out, s) })
	return out
}

func walk(v Value, emit func(string)) {
	switch x := v.(type) {
	case String:
		emit(string(x))
	case Number:
		emit(x.Text())
	case Bool:
		if x {
			emit("true")
		} else {
			emit("false")
		}
	case Array:
		for _, e := range x {
			walk(e, emit)
		}
	case *Object:
		if len(x.Members) == 1 {
			walk(x.Members[0].Value, emit)
			return
		}
		seen := make(map[string]struct{}, len(x.Members))
		for _, m := range x.Members {
			if _, dup := seen[m.Key]; dup {
				continue
			}
			seen[m.Key] = struct{}{}
			last, _ := x.Get(m.Key)
			walk(last, emit)
		}
	}
}

// Flatten joins all scalar leaves of the record with single spaces. Keys are
// not included; only values are indexed.
func Flatten(v Value) string {
	return strings.Join(Leaves(v), " ")
}

// Project extracts the url, title and type members used for display.
func Project(obj *Object) Meta {
	return Meta{
		URL:   scalarText(obj, "url"),
		Title: scalarText(obj, "title"),
		Type:  scalarText(obj, "type"),
	}
}

func scalarText(obj *Object, key string) string {
	v, ok := obj.Get(key)
	if !ok {
		return ""
	}
	switch v.(type) {
	case String, Number, Bool:
		return Leaves(v)[0]
	default:
		return ""
	}
}
