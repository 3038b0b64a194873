package score

// TypeFilter allows or denies entities by type. Each listed type carries a
// precedence; the lowest precedence found among the types of an entity
// wins, and precedence 0 ends the search.
type TypeFilter struct {
	Allow map[string]int `yaml:"allow"`
	Deny  map[string]int `yaml:"deny"`
	// DefaultAllow keeps entities none of whose types is listed.
	DefaultAllow bool `yaml:"default_allow"`
}

// Filtered reports whether an entity with the given types is excluded.
func (f TypeFilter) Filtered(types []string) bool {
	var w, b *int
	for _, t := range types {
		if act, ok := f.Allow[t]; ok {
			if w == nil || act < *w {
				w = &act
			}
			if act == 0 {
				break
			}
		}
		if act, ok := f.Deny[t]; ok {
			if b == nil || act < *b {
				b = &act
			}
			if act == 0 {
				break
			}
		}
	}
	switch {
	case w == nil && b == nil:
		return !f.DefaultAllow
	case w != nil:
		return b != nil && *w >= *b
	default:
		return true
	}
}

// Wildcard in a named entity type mapping accepts every entity.
const Wildcard = "*"

// filteredByNamedEntity reports whether none of the entity types is mapped
// from the named entity types.
func filteredByNamedEntity(mappings map[string][]string, entityTypes, neTypes []string) bool {
	allowed := make(map[string]struct{})
	for _, ne := range neTypes {
		for _, m := range mappings[ne] {
			if m == Wildcard {
				return false
			}
			allowed[m] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return true
	}
	for _, t := range entityTypes {
		if _, ok := allowed[t]; ok {
			return false
		}
	}
	return true
}
