package registry

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/chrisuehlinger/vquery/dom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const dataAttrPrefix = "data-"

// Data returns the value stored under key for n. A key that was never set
// is read from the matching data-* attribute, decoded and cached.
func (r *Registry) Data(n *dom.Node, key string) (any, bool) {
	e := r.Entry(n)
	if v, ok := e.data[key]; ok {
		return v, true
	}
	if e.hasAttrCache {
		return nil, false
	}
	el := n.AsElement()
	if el == nil {
		return nil, false
	}
	name := dataAttrPrefix + kebabCase(key)
	if !el.HasAttribute(name) {
		return nil, false
	}
	v := DecodeDataValue(el.GetAttribute(name))
	e.data[key] = v
	return v, true
}

// SetData stores value under key for n.
func (r *Registry) SetData(n *dom.Node, key string, value any) {
	r.Entry(n).data[key] = value
}

// DataAll returns a copy of every value stored for n. On the first call the
// node's data-* attributes are merged in under camel-cased keys; values set
// explicitly before that take precedence.
func (r *Registry) DataAll(n *dom.Node) map[string]any {
	e := r.Entry(n)
	if !e.hasAttrCache {
		if el := n.AsElement(); el != nil {
			for _, attr := range el.Attributes() {
				if !strings.HasPrefix(attr.Name, dataAttrPrefix) {
					continue
				}
				key := camelCase(attr.Name[len(dataAttrPrefix):])
				if _, ok := e.data[key]; !ok {
					e.data[key] = DecodeDataValue(attr.Value)
				}
			}
		}
		e.hasAttrCache = true
	}

	out := make(map[string]any, len(e.data))
	for k, v := range e.data {
		out[k] = v
	}
	return out
}

// RemoveData deletes the given keys for n, or every key when none are given.
// Removed keys are not re-read from attributes once DataAll has run.
func (r *Registry) RemoveData(n *dom.Node, keys ...string) {
	e, ok := r.Lookup(n)
	if !ok {
		return
	}
	if len(keys) == 0 {
		clear(e.data)
		return
	}
	for _, k := range keys {
		delete(e.data, k)
	}
}

// DecodeDataValue converts a data-* attribute value: "true", "false" and
// "null" become their literal values, numbers that survive a round trip
// become float64, and text starting with '{' or '[' is parsed as JSON.
// Anything else stays a string.
func DecodeDataValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return f
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		var v any
		if err := json.UnmarshalFromString(s, &v); err == nil {
			return v
		}
	}
	return s
}

// camelCase turns "foo-bar" into "fooBar".
func camelCase(s string) string {
	var sb strings.Builder
	upper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' && i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
			upper = true
			continue
		}
		if upper {
			c -= 'a' - 'A'
			upper = false
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// kebabCase turns "fooBar" into "foo-bar".
func kebabCase(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			sb.WriteByte('-')
			c += 'a' - 'A'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
