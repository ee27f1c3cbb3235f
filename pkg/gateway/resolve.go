package gateway

import (
	"fmt"
	"strings"
)

// target is one (provider, model) pair a request can be routed to.
type target struct {
	provider string
	model    string
}

// resolveModel expands a client model string into an ordered target
// list. A combo name expands each member through the alias table; an
// alias maps to one "provider/model"; anything with a slash is taken
// literally. The tables are snapshots taken at request entry.
func resolveModel(model string, aliases map[string]string, combos map[string][]string) ([]target, error) {
	if models, ok := combos[model]; ok {
		if len(models) == 0 {
			return nil, fmt.Errorf("combo %q is empty", model)
		}
		out := make([]target, 0, len(models))
		for _, m := range models {
			t, err := resolveSingle(m, aliases)
			if err != nil {
				return nil, fmt.Errorf("combo %q: %w", model, err)
			}
			out = append(out, t)
		}
		return out, nil
	}

	t, err := resolveSingle(model, aliases)
	if err != nil {
		return nil, err
	}
	return []target{t}, nil
}

func resolveSingle(model string, aliases map[string]string) (target, error) {
	if mapped, ok := aliases[model]; ok {
		model = mapped
	}
	provider, name, ok := strings.Cut(model, "/")
	if !ok || provider == "" || name == "" {
		return target{}, fmt.Errorf("unknown model %q", model)
	}
	return target{provider: provider, model: name}, nil
}
