package store

import (
	"errors"
	"testing"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		enc  FieldEncoding
		lang string
		want string
	}{
		{EncodingNone, "en", "label"},
		{EncodingSolrYard, "en", "@en/label/"},
		{EncodingSolrYard, "", "@/label/"},
		{EncodingUnderscorePrefix, "de", "de_label"},
		{EncodingMinusSuffix, "de", "label-de"},
		{EncodingUnderscoreSuffix, "de", "label_de"},
		{EncodingAtPrefix, "fr", "fr@label"},
		{EncodingAtSuffix, "fr", "label@fr"},
		{EncodingUnderscoreSuffix, "", "label"},
	}
	for _, tt := range tests {
		got := tt.enc.Encode("label", tt.lang)
		if got != tt.want {
			t.Errorf("%v.Encode(label, %q) = %q, want %q", tt.enc, tt.lang, got, tt.want)
			continue
		}
		if tt.enc == EncodingNone {
			continue
		}
		lang, ok := tt.enc.Decode(got, "label")
		if !ok || lang != tt.lang {
			t.Errorf("%v.Decode(%q) = %q, %v; want %q", tt.enc, got, lang, ok, tt.lang)
		}
	}
}

func TestDecodeRejectsOtherFields(t *testing.T) {
	if _, ok := EncodingUnderscoreSuffix.Decode("type", "label"); ok {
		t.Error("type should not decode as label")
	}
	if _, ok := EncodingUnderscoreSuffix.Decode("label_", "label"); ok {
		t.Error("empty suffix should not decode")
	}
	if _, ok := EncodingSolrYard.Decode("@en/x/label/", "label"); ok {
		t.Error("nested path should not decode")
	}
	if _, ok := EncodingSolrYard.Decode("label", "label"); ok {
		t.Error("solr yard has no plain form")
	}
}

func TestParseFieldEncoding(t *testing.T) {
	for in, want := range map[string]FieldEncoding{
		"":                  EncodingNone,
		"solr_yard":         EncodingSolrYard,
		"SolrYard":          EncodingSolrYard,
		"underscore-suffix": EncodingUnderscoreSuffix,
		" at_prefix ":       EncodingAtPrefix,
	} {
		got, err := ParseFieldEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseFieldEncoding(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFieldEncoding("base64"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestSchemaFields(t *testing.T) {
	rank := 3.5
	s := Schema{LabelField: "label", TypeField: "type", RankingField: "rank", Encoding: EncodingUnderscoreSuffix}
	f := s.Fields(Entity{
		URI:       "urn:x",
		Labels:    map[string][]string{"en": {"X", "Ex"}, "de": nil},
		Types:     []string{"dbo:Thing"},
		Redirects: []string{"urn:y"},
		Ranking:   &rank,
	})
	if f.First(IDField) != "urn:x" {
		t.Errorf("Unexpected id: %v", f.Values(IDField))
	}
	if got := f.Values("label_en"); len(got) != 2 || got[1] != "Ex" {
		t.Errorf("Unexpected labels: %v", got)
	}
	if _, ok := f.Strings["label_de"]; ok {
		t.Error("Empty label lists should be skipped")
	}
	if r, ok := f.Number("rank"); !ok || r != 3.5 {
		t.Errorf("Unexpected ranking: %v %v", r, ok)
	}
	want := []string{IDField, "label_en", "rank", "type"}
	names := f.Names()
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
		}
	}

	p := f.Project([]string{"type", "missing"})
	if len(p.Strings) != 1 || len(p.Numbers) != 0 {
		t.Errorf("Unexpected projection: %+v", p)
	}
}
