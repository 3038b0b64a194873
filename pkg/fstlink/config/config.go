package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/fstlink/pkg/fstlink/internalerr"
	"github.com/cognicore/fstlink/pkg/fstlink/score"
	"github.com/cognicore/fstlink/pkg/fstlink/store"
	"github.com/cognicore/fstlink/pkg/fstlink/tagger"
)

// Language configures the corpus of one language
type Language struct {
	// Field is the indexed label field; defaults to the encoded label_field.
	Field string `yaml:"field"`
	// Stored is the label field read for scoring; defaults to Field.
	Stored   string `yaml:"stored"`
	Analyzer string `yaml:"analyzer"`
	Generate bool   `yaml:"generate"`
	// FST overrides the automaton file, relative to fst_dir.
	FST string `yaml:"fst"`
}

// Arena bounds the memory of resident automata
type Arena struct {
	MaxCostMB int64         `yaml:"max_cost_mb"`
	WeakTTL   time.Duration `yaml:"weak_ttl"`
}

// Classifier tunes the chunk rules of the token classifier
type Classifier struct {
	IgnoreChunks              bool `yaml:"ignore_chunks"`
	LinkMultiMatchableInChunk bool `yaml:"link_multi_matchable_in_chunk"`
}

// Config is the linker configuration file
type Config struct {
	Name            string              `yaml:"name"`
	FSTDir          string              `yaml:"fst_dir"`
	FieldEncoding   string              `yaml:"field_encoding"`
	LabelField      string              `yaml:"label_field"`
	DefaultLanguage string              `yaml:"default_language"`
	Languages       map[string]Language `yaml:"languages"`

	// DiscoverLanguages adds a generated corpus for every language of
	// label_field found in the index.
	DiscoverLanguages bool `yaml:"discover_languages"`
	// WatchFiles reloads automata replaced on disk by another process.
	WatchFiles bool `yaml:"watch_files"`

	TypeField     string `yaml:"type_field"`
	RedirectField string `yaml:"redirect_field"`
	RankingField  string `yaml:"ranking_field"`

	CaseSensitive        bool                `yaml:"case_sensitive"`
	MaxSuggestions       int                 `yaml:"max_suggestions"`
	MinMatchScore        float64             `yaml:"min_match_score"`
	RankEqualScores      bool                `yaml:"rank_equal_scores"`
	IncludeSimilarScores bool                `yaml:"include_similar_scores"`
	LinkingMode          string              `yaml:"linking_mode"`
	TypeFilter           score.TypeFilter    `yaml:"type_filter"`
	TypeMappings         map[string]string   `yaml:"type_mappings"`
	DefaultType          string              `yaml:"default_type"`
	NETypeMappings       map[string][]string `yaml:"ne_type_mappings"`

	PoolSize        int        `yaml:"pool_size"`
	EntityCacheSize int        `yaml:"entity_cache_size"`
	Arena           Arena      `yaml:"arena"`
	Classifier      Classifier `yaml:"classifier"`
	LogLevel        string     `yaml:"log_level"`
}

// Default returns the configuration used for keys missing from a file.
func Default() *Config {
	return &Config{
		Name:            "fstlink",
		FSTDir:          ".",
		FieldEncoding:   "none",
		LabelField:      "label",
		MaxSuggestions:  score.DefaultMaxSuggestions,
		RankEqualScores: true,
		LinkingMode:     "linkable_token",
		TypeFilter:      score.TypeFilter{DefaultAllow: true},
		PoolSize:        1,
		EntityCacheSize: 65536,
		Arena:           Arena{MaxCostMB: 1024, WeakTTL: 5 * time.Minute},
		Classifier:      Classifier{LinkMultiMatchableInChunk: true},
		LogLevel:        "info",
	}
}

// Load reads a configuration file on top of the defaults and validates it
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encoding returns the parsed field encoding.
func (c *Config) Encoding() (store.FieldEncoding, error) {
	return store.ParseFieldEncoding(c.FieldEncoding)
}

// Mode returns the parsed linking mode.
func (c *Config) Mode() (tagger.Mode, error) {
	return tagger.ParseMode(c.LinkingMode)
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Name == "" {
		return invalid("name is required")
	}
	if _, err := c.Encoding(); err != nil {
		return err
	}
	if _, err := c.Mode(); err != nil {
		return err
	}
	if len(c.Languages) == 0 && !c.DiscoverLanguages {
		return invalid("no languages configured")
	}
	if c.LabelField == "" {
		for lang, l := range c.Languages {
			if l.Field == "" {
				return invalid("language %q has no field and label_field is empty", lang)
			}
		}
		if c.DiscoverLanguages {
			return invalid("discover_languages needs label_field")
		}
	}
	if c.MaxSuggestions < 1 {
		return invalid("max_suggestions must be positive, got %d", c.MaxSuggestions)
	}
	if c.MinMatchScore < 0 || c.MinMatchScore > 1 {
		return invalid("min_match_score must be within [0,1], got %v", c.MinMatchScore)
	}
	if c.PoolSize < 1 {
		return invalid("pool_size must be positive, got %d", c.PoolSize)
	}
	if c.EntityCacheSize < 1 {
		return invalid("entity_cache_size must be positive, got %d", c.EntityCacheSize)
	}
	if c.Arena.MaxCostMB < 0 || c.Arena.WeakTTL < 0 {
		return invalid("arena limits must not be negative")
	}
	return nil
}
