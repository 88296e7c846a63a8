package blocks

import (
	"sort"

	"github.com/san-kum/dynblocks/internal/symbolic"
)

// Category is one of the four symbol classes of a component.
type Category int

const (
	CategoryInputs Category = iota
	CategoryIParams
	CategoryIStates
	CategoryOutputs
	numCategories
)

func (c Category) String() string {
	switch c {
	case CategoryInputs:
		return "inputs"
	case CategoryIParams:
		return "iparams"
	case CategoryIStates:
		return "istates"
	case CategoryOutputs:
		return "outputs"
	}
	return "unknown"
}

func (c Category) kind() symbolic.Kind {
	if c == CategoryInputs || c == CategoryIParams {
		return symbolic.Parameter
	}
	return symbolic.Variable
}

// Promotion maps a qualified subsystem symbol to its name in the system.
type Promotion struct {
	From string
	To   string
}

type candidate struct {
	qualified string
	bare      string
}

// promote maps every candidate not in skip to its bare name. A bare name
// counted more than once in counts is unresolvable: its candidates keep their
// qualified names. When counts is nil the candidates themselves are counted.
func promote(cands []candidate, skip map[string]bool, counts map[string]int) (map[string]string, []string) {
	if counts == nil {
		counts = make(map[string]int)
		for _, c := range cands {
			if !skip[c.qualified] {
				counts[c.bare]++
			}
		}
	}
	out := make(map[string]string, len(cands))
	var unresolvable []string
	for _, c := range cands {
		if skip[c.qualified] {
			continue
		}
		if counts[c.bare] > 1 {
			out[c.qualified] = c.qualified
			unresolvable = append(unresolvable, c.qualified)
			continue
		}
		out[c.qualified] = c.bare
	}
	return out, unresolvable
}

// promoteCategory validates the user map for one category, completes it with
// automatic promotions over the unclaimed candidates and checks that the
// promoted names are unique.
func promoteCategory(system string, cat Category, legal []candidate, user map[string]string, claimed map[string]bool, counts map[string]int) ([]Promotion, []string, error) {
	const op = "promote"
	legalSet := make(map[string]bool, len(legal))
	for _, c := range legal {
		legalSet[c.qualified] = true
	}

	keys := sortedKeys(user)
	var illegal []string
	for _, k := range keys {
		if !legalSet[k] {
			illegal = append(illegal, k)
		}
	}
	if len(illegal) > 0 {
		return nil, nil, newError(op, system, ErrInvalidMap, cat.String()+" map keys are not candidates", illegal...)
	}
	if dups := duplicateValues(user, keys); len(dups) > 0 {
		return nil, nil, newError(op, system, ErrInvalidMap, cat.String()+" map promotes several symbols to the same name", dups...)
	}
	for _, k := range keys {
		if user[k] == "" {
			return nil, nil, newError(op, system, ErrInvalidMap, cat.String()+" map promotes to an empty name", k)
		}
	}

	skip := make(map[string]bool, len(user)+len(claimed))
	for k := range user {
		skip[k] = true
	}
	for k := range claimed {
		skip[k] = true
	}
	auto, unresolvable := promote(legal, skip, counts)

	var out []Promotion
	for _, c := range legal {
		if to, ok := user[c.qualified]; ok {
			out = append(out, Promotion{From: c.qualified, To: to})
		} else if to, ok := auto[c.qualified]; ok {
			out = append(out, Promotion{From: c.qualified, To: to})
		}
	}

	seen := make(map[string]string, len(out))
	for _, p := range out {
		if prev, ok := seen[p.To]; ok {
			return nil, nil, newError(op, system, ErrNamespaceCollision, cat.String()+" promoted to the same name "+p.To, prev, p.From)
		}
		seen[p.To] = p.From
	}
	return out, unresolvable, nil
}

func duplicateValues(m map[string]string, keys []string) []string {
	seen := make(map[string]string, len(m))
	var dups []string
	for _, k := range keys {
		v := m[k]
		if prev, ok := seen[v]; ok {
			dups = append(dups, prev, k)
			continue
		}
		seen[v] = k
	}
	return dups
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
