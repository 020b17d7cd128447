package rules

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// rawRule mirrors one [[rule]] table. Exactly one of a comparison
// (field/op/value) or a group (all, any, not) must be present.
type rawRule struct {
	Field string    `toml:"field"`
	Op    string    `toml:"op"`
	Value any       `toml:"value"`
	All   []rawRule `toml:"all"`
	Any   []rawRule `toml:"any"`
	Not   *rawRule  `toml:"not"`
}

type rawFile struct {
	Rule []rawRule `toml:"rule"`
}

// Parse decodes a TOML rule set. The result is an Any over the top-level
// [[rule]] tables: a record matches when any rule matches.
//
//	[[rule]]
//	field = "country_code"
//	op = "in"
//	value = ["KP", "IR"]
//
//	[[rule]]
//	  [[rule.all]]
//	  field = "asn"
//	  op = "ge"
//	  value = 64512
//	  [[rule.all]]
//	    [rule.all.not]
//	    field = "asorg"
//	    op = "contains"
//	    value = "university"
func Parse(data string) (Any, error) {
	var f rawFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	out := make(Any, 0, len(f.Rule))
	for i := range f.Rule {
		n, err := build(&f.Rule[i])
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Load reads and parses a TOML rule file.
func Load(path string) (Any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

func build(r *rawRule) (Node, error) {
	kinds := 0
	if r.Field != "" || r.Op != "" {
		kinds++
	}
	if len(r.All) > 0 {
		kinds++
	}
	if len(r.Any) > 0 {
		kinds++
	}
	if r.Not != nil {
		kinds++
	}
	if kinds != 1 {
		return nil, ErrInvalidRule
	}

	switch {
	case len(r.All) > 0:
		children, err := buildAll(r.All)
		return All(children), err
	case len(r.Any) > 0:
		children, err := buildAll(r.Any)
		return Any(children), err
	case r.Not != nil:
		child, err := build(r.Not)
		if err != nil {
			return nil, err
		}
		return Not{Node: child}, nil
	}
	return NewCompare(r.Field, r.Op, r.Value)
}

func buildAll(raw []rawRule) ([]Node, error) {
	out := make([]Node, 0, len(raw))
	for i := range raw {
		n, err := build(&raw[i])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
