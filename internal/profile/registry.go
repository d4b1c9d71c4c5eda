package profile

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var builtinCatalogue []byte

// Logger interface for optional logging support.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Registry holds the validated profiles, keyed by model.
//
// A Registry is read-only after Load returns and safe for concurrent use.
type Registry struct {
	profiles map[string]*Profile
	rejected map[string]error
	order    []string
}

// Builtin loads the catalogue compiled into the binary.
func Builtin(logger Logger) (*Registry, error) {
	return Load(builtinCatalogue, logger)
}

// Load parses a YAML catalogue of profiles keyed by model.
//
// Every profile is validated on its own. A profile that fails validation is
// logged and left out of the registry; it does not fail the load. Load only
// returns an error when the document itself is not a YAML mapping.
func Load(data []byte, logger Logger) (*Registry, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}

	r := &Registry{
		profiles: make(map[string]*Profile),
		rejected: make(map[string]error),
	}

	if len(doc.Content) == 0 {
		return r, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: top level must map model ids to profiles", ErrInvalidCatalogue, root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		model := root.Content[i].Value
		if _, dup := r.profiles[model]; dup {
			err := fmt.Errorf("%w: %s: duplicate model", ErrInvalidProfile, model)
			r.reject(model, err, logger)
			continue
		}

		p, err := build(model, root.Content[i+1])
		if err != nil {
			r.reject(model, err, logger)
			continue
		}
		r.profiles[model] = p
		r.order = append(r.order, model)
	}

	sort.Strings(r.order)

	return r, nil
}

func (r *Registry) reject(model string, err error, logger Logger) {
	delete(r.profiles, model)
	for i, m := range r.order {
		if m == model {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rejected[model] = err
	logger.Error("device profile rejected", "model", model, "error", err)
}

// ParseProfile validates a single profile document.
func ParseProfile(model string, data []byte) (*Profile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, model, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", ErrInvalidProfile, model)
	}
	return build(model, doc.Content[0])
}

// Get returns the profile for model.
func (r *Registry) Get(model string) (*Profile, bool) {
	p, ok := r.profiles[model]
	return p, ok
}

// Models returns the selectable model ids in sorted order.
func (r *Registry) Models() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Rejected returns the models that failed validation and why.
func (r *Registry) Rejected() map[string]error {
	out := make(map[string]error, len(r.rejected))
	for k, v := range r.rejected {
		out[k] = v
	}
	return out
}

// DisplayName returns the profile name for model, or model itself when the
// model is unknown.
func (r *Registry) DisplayName(model string) string {
	if p, ok := r.profiles[model]; ok {
		return p.Name
	}
	return model
}
