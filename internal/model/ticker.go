package model

// Ticker is read-only reference data describing one tradable instrument.
// The dictionary is loaded externally and shared by all generators without
// locking; nothing in the pipeline mutates it.
type Ticker struct {
	ID          int64    `json:"id" yaml:"id"`
	Symbol      string   `json:"symbol" yaml:"symbol"`
	Name        string   `json:"name" yaml:"name"`
	Aliases     []string `json:"aliases,omitempty" yaml:"aliases"`
	Description string   `json:"description,omitempty" yaml:"description"`
}

// AllNames returns the symbol, display name and aliases, deduplicated and
// with empty strings dropped.
func (t Ticker) AllNames() []string {
	seen := make(map[string]bool, 2+len(t.Aliases))
	var names []string
	for _, n := range append([]string{t.Symbol, t.Name}, t.Aliases...) {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}
