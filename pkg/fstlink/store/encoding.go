package store

import (
	"fmt"
	"strings"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
)

// FieldEncoding describes how the language of a multilingual field is
// encoded in the stored field name.
type FieldEncoding int

const (
	// EncodingNone uses the plain field name for every language.
	EncodingNone FieldEncoding = iota
	// EncodingSolrYard encodes as "@{lang}/{field}/".
	EncodingSolrYard
	// EncodingUnderscorePrefix encodes as "{lang}_{field}".
	EncodingUnderscorePrefix
	// EncodingMinusSuffix encodes as "{field}-{lang}".
	EncodingMinusSuffix
	// EncodingUnderscoreSuffix encodes as "{field}_{lang}".
	EncodingUnderscoreSuffix
	// EncodingAtPrefix encodes as "{lang}@{field}".
	EncodingAtPrefix
	// EncodingAtSuffix encodes as "{field}@{lang}".
	EncodingAtSuffix
)

var encodingNames = map[FieldEncoding]string{
	EncodingNone:             "none",
	EncodingSolrYard:         "solr_yard",
	EncodingUnderscorePrefix: "underscore_prefix",
	EncodingMinusSuffix:      "minus_suffix",
	EncodingUnderscoreSuffix: "underscore_suffix",
	EncodingAtPrefix:         "at_prefix",
	EncodingAtSuffix:         "at_suffix",
}

func (e FieldEncoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return fmt.Sprintf("FieldEncoding(%d)", int(e))
}

// ParseFieldEncoding parses the configuration name of an encoding. The
// empty string selects EncodingNone.
func ParseFieldEncoding(s string) (FieldEncoding, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return EncodingNone, nil
	}
	norm = strings.ReplaceAll(norm, "-", "_")
	for e, name := range encodingNames {
		if name == norm || strings.ReplaceAll(name, "_", "") == norm {
			return e, nil
		}
	}
	return EncodingNone, fmt.Errorf("%w: unknown field encoding %q", internalerr.ErrInvalidConfig, s)
}

// Encode returns the stored name of field for the language. The empty
// language addresses values without language.
func (e FieldEncoding) Encode(field, lang string) string {
	switch e {
	case EncodingSolrYard:
		return "@" + lang + "/" + field + "/"
	case EncodingNone:
		return field
	}
	if lang == "" {
		return field
	}
	switch e {
	case EncodingUnderscorePrefix:
		return lang + "_" + field
	case EncodingMinusSuffix:
		return field + "-" + lang
	case EncodingUnderscoreSuffix:
		return field + "_" + lang
	case EncodingAtPrefix:
		return lang + "@" + field
	case EncodingAtSuffix:
		return field + "@" + lang
	}
	return field
}

// Decode extracts the language from a stored field name encoded for field.
// ok is false when name does not encode field.
func (e FieldEncoding) Decode(name, field string) (lang string, ok bool) {
	if name == field && e != EncodingSolrYard {
		return "", true
	}
	switch e {
	case EncodingSolrYard:
		if !strings.HasPrefix(name, "@") || !strings.HasSuffix(name, "/"+field+"/") {
			return "", false
		}
		lang = strings.TrimSuffix(strings.TrimPrefix(name, "@"), "/"+field+"/")
		if strings.Contains(lang, "/") {
			return "", false
		}
		return lang, true
	case EncodingUnderscorePrefix:
		return cut(name, "", "_"+field)
	case EncodingMinusSuffix:
		return cut(name, field+"-", "")
	case EncodingUnderscoreSuffix:
		return cut(name, field+"_", "")
	case EncodingAtPrefix:
		return cut(name, "", "@"+field)
	case EncodingAtSuffix:
		return cut(name, field+"@", "")
	}
	return "", false
}

func cut(name, prefix, suffix string) (string, bool) {
	if len(name) <= len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return name[len(prefix) : len(name)-len(suffix)], true
}
