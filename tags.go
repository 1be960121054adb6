package rest

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// paramTags are the struct tags used for non-body parameter binding.
var paramTags = []string{"path", "query", "header", "cookie"}

var tagSources = map[string]paramSource{
	"path":   sourcePath,
	"query":  sourceQuery,
	"header": sourceHeader,
	"cookie": sourceCookie,
}

// tagOptions splits a struct tag value on comma and returns
// the name and remaining options.
func tagOptions(tag string) (string, string) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts
}

// tagContains reports whether a comma-separated list of options
// contains a particular option.
func tagContains(opts string, name string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == name {
			return true
		}
	}
	return false
}

// splitList splits a comma-separated tag value into trimmed items.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// isParamField reports whether a struct field has parameter binding tags.
func isParamField(f reflect.StructField) bool {
	for _, tag := range paramTags {
		if f.Tag.Get(tag) != "" {
			return true
		}
	}
	return false
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// attributeName is the declared (non-alias) name of a field, used when
// serializing with ByAlias(false): the exported Go name with its first
// rune lowered.
func attributeName(f reflect.StructField) string {
	r, size := utf8.DecodeRuneInString(f.Name)
	return string(unicode.ToLower(r)) + f.Name[size:]
}
