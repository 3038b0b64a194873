package store

// Entity is the import form of one linkable entity.
type Entity struct {
	URI       string              `yaml:"uri"`
	Labels    map[string][]string `yaml:"labels"` // language -> labels, "" for no language
	Types     []string            `yaml:"types"`
	Redirects []string            `yaml:"redirects"`
	Ranking   *float64            `yaml:"ranking"`
}

// Schema names the stored fields entities are written to.
type Schema struct {
	LabelField    string
	TypeField     string
	RedirectField string
	RankingField  string
	Encoding      FieldEncoding
}

// Fields converts an entity into stored field values.
func (s Schema) Fields(e Entity) Fields {
	f := NewFields()
	f.Strings[IDField] = []string{e.URI}
	for lang, labels := range e.Labels {
		if len(labels) == 0 {
			continue
		}
		name := s.Encoding.Encode(s.LabelField, lang)
		f.Strings[name] = append(f.Strings[name], labels...)
	}
	if len(e.Types) > 0 && s.TypeField != "" {
		f.Strings[s.TypeField] = append([]string(nil), e.Types...)
	}
	if len(e.Redirects) > 0 && s.RedirectField != "" {
		f.Strings[s.RedirectField] = append([]string(nil), e.Redirects...)
	}
	if e.Ranking != nil && s.RankingField != "" {
		f.Numbers[s.RankingField] = *e.Ranking
	}
	return f
}
