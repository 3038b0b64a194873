package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
	"github.com/cognicore/fstlink/pkg/fstlink/tagger"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "fstlink.yaml")

	content := `name: dbpedia
fst_dir: /var/lib/fstlink
field_encoding: solr_yard
default_language: ""
languages:
  en:
    field: rdfs:label
    analyzer: en
    generate: true
  "":
    analyzer: standard
linking_mode: ner
max_suggestions: 5
min_match_score: 0.3
type_filter:
  allow:
    dbo:Person: 0
  deny:
    dbo:Album: 1
  default_allow: false
ne_type_mappings:
  PER: ["dbo:Person"]
arena:
  weak_ttl: 90s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Name != "dbpedia" {
		t.Errorf("Expected name dbpedia, got %q", cfg.Name)
	}
	if len(cfg.Languages) != 2 {
		t.Fatalf("Expected 2 languages, got %d", len(cfg.Languages))
	}
	if en := cfg.Languages["en"]; en.Field != "rdfs:label" || !en.Generate || en.Analyzer != "en" {
		t.Errorf("Unexpected en language: %+v", en)
	}
	if enc, _ := cfg.Encoding(); enc != store.EncodingSolrYard {
		t.Errorf("Expected solr_yard encoding, got %v", enc)
	}
	if mode, _ := cfg.Mode(); mode != tagger.ModeNER {
		t.Errorf("Expected ner mode, got %v", mode)
	}
	if cfg.MaxSuggestions != 5 || cfg.MinMatchScore != 0.3 {
		t.Errorf("Unexpected scoring options: %d %v", cfg.MaxSuggestions, cfg.MinMatchScore)
	}
	if cfg.TypeFilter.DefaultAllow || cfg.TypeFilter.Deny["dbo:Album"] != 1 {
		t.Errorf("Unexpected type filter: %+v", cfg.TypeFilter)
	}
	if got := cfg.NETypeMappings["PER"]; len(got) != 1 || got[0] != "dbo:Person" {
		t.Errorf("Unexpected NE mapping: %v", got)
	}

	// untouched keys keep their defaults
	if cfg.Arena.WeakTTL != 90*time.Second || cfg.Arena.MaxCostMB != 1024 {
		t.Errorf("Unexpected arena: %+v", cfg.Arena)
	}
	if !cfg.RankEqualScores || cfg.PoolSize != 1 || cfg.EntityCacheSize != 65536 {
		t.Error("Defaults should survive partial files")
	}
	if !cfg.Classifier.LinkMultiMatchableInChunk {
		t.Error("Classifier default should survive partial files")
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := Load("/nonexistent/fstlink.yaml")
	if err == nil {
		t.Error("Should error on nonexistent file")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no languages":      "name: x\n",
		"bad encoding":      "languages: {en: {}}\nfield_encoding: nope\n",
		"bad mode":          "languages: {en: {}}\nlinking_mode: fuzzy\n",
		"bad min score":     "languages: {en: {}}\nmin_match_score: 1.5\n",
		"bad suggestions":   "languages: {en: {}}\nmax_suggestions: 0\n",
		"no field":          "languages: {en: {}}\nlabel_field: \"\"\n",
		"discover no field": "discover_languages: true\nlabel_field: \"\"\n",
		"not yaml":          "languages: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDefaultIsValidWithLanguage(t *testing.T) {
	cfg := Default()
	cfg.Languages = map[string]Language{"": {Generate: true}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}
