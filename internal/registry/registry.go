package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wagiedev/cwmanager/internal/errors"
	"github.com/wagiedev/cwmanager/internal/schema"
)

// Kind distinguishes the two registration namespaces.
type Kind int

const (
	// KindTool registrations are addressed by exact name.
	KindTool Kind = iota
	// KindResource registrations are addressed by URI template.
	KindResource
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTool:
		return "tool"
	case KindResource:
		return "resource"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a wire name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "tool":
		return KindTool, nil
	case "resource":
		return KindResource, nil
	}

	return 0, fmt.Errorf("unknown registration kind %q", s)
}

// DefaultMIMEType is used for resources that do not declare one.
const DefaultMIMEType = "text/plain"

// Registration is the stored metadata and handler for one tool or resource.
type Registration struct {
	// Name is the tool name or the resource URI template.
	Name        string
	Kind        Kind
	Description string
	// MIMEType applies to resources only.
	MIMEType string
	Params   schema.Params
	Handler  Handler

	template *uriTemplate
}

// Templated reports whether a resource registration has placeholders.
func (r *Registration) Templated() bool {
	return r.template != nil && !r.template.static()
}

// Placeholders returns the template's placeholder names in order of appearance.
func (r *Registration) Placeholders() []string {
	if r.template == nil {
		return nil
	}

	return slices.Clone(r.template.varnames)
}

// Match is the result of a successful resolution.
type Match struct {
	Registration *Registration
	// Placeholders holds values extracted from a resource URI.
	// It is empty for tools.
	Placeholders map[string]string
}

// Registry holds every tool and resource registration of a process.
//
// Registrations are accepted until Freeze is called; after that the registry
// is read-only and safe for concurrent resolution.
type Registry struct {
	log *slog.Logger

	mu        sync.RWMutex
	tools     map[string]*Registration
	toolOrder []string
	resources []*Registration
	frozen    bool
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Registry{
		log:   log.With("component", "registry"),
		tools: make(map[string]*Registration, 8),
	}
}

// Register adds a registration.
//
// Returns *errors.DuplicateRegistrationError when the name or template is
// already taken (or, for resources, overlaps an existing template), and
// *errors.InvalidSchemaError when the parameter list is invalid, disagrees
// with a positional handler, or omits a template placeholder.
func (r *Registry) Register(reg Registration) error {
	if err := r.prepare(&reg); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.ErrRegistryFrozen
	}

	switch reg.Kind {
	case KindTool:
		if _, exists := r.tools[reg.Name]; exists {
			return &errors.DuplicateRegistrationError{Category: reg.Kind.String(), Identifier: reg.Name}
		}

		r.tools[reg.Name] = &reg
		r.toolOrder = append(r.toolOrder, reg.Name)

	case KindResource:
		for _, existing := range r.resources {
			if existing.template.overlaps(reg.template) {
				return &errors.DuplicateRegistrationError{
					Category:   reg.Kind.String(),
					Identifier: reg.Name,
					Overlaps:   existing.Name,
				}
			}
		}

		r.resources = append(r.resources, &reg)
	}

	r.log.Debug("Registered handler",
		"kind", reg.Kind.String(),
		"name", reg.Name,
		"params", len(reg.Params),
	)

	return nil
}

// prepare validates a registration that is not yet visible to resolvers.
func (r *Registry) prepare(reg *Registration) error {
	if reg.Kind != KindTool && reg.Kind != KindResource {
		return &errors.InvalidSchemaError{Identifier: reg.Name, Reason: fmt.Sprintf("unknown kind %d", int(reg.Kind))}
	}

	if reg.Name == "" {
		return &errors.InvalidSchemaError{Identifier: reg.Name, Reason: "empty " + reg.Kind.String() + " name"}
	}

	if reg.Handler == nil {
		return &errors.InvalidSchemaError{Identifier: reg.Name, Reason: "nil handler"}
	}

	reg.Params = slices.Clone(reg.Params)

	if err := reg.Params.Validate(); err != nil {
		return &errors.InvalidSchemaError{Identifier: reg.Name, Reason: "invalid parameters", Err: err}
	}

	if checker, ok := reg.Handler.(signatureChecker); ok {
		if err := checker.checkSignature(reg.Params); err != nil {
			return &errors.InvalidSchemaError{Identifier: reg.Name, Reason: "handler signature mismatch", Err: err}
		}
	}

	if reg.Kind == KindTool {
		return nil
	}

	tmpl, err := parseTemplate(reg.Name)
	if err != nil {
		return &errors.InvalidSchemaError{Identifier: reg.Name, Reason: "invalid URI template", Err: err}
	}

	for _, name := range tmpl.varnames {
		param, ok := reg.Params.Lookup(name)
		if !ok {
			return &errors.InvalidSchemaError{
				Identifier: reg.Name,
				Reason:     fmt.Sprintf("placeholder %q is not a declared parameter", name),
			}
		}

		if !param.Required {
			return &errors.InvalidSchemaError{
				Identifier: reg.Name,
				Reason:     fmt.Sprintf("placeholder %q must be a required parameter", name),
			}
		}
	}

	reg.template = tmpl

	if reg.MIMEType == "" {
		reg.MIMEType = DefaultMIMEType
	}

	return nil
}

// Resolve finds the registration addressed by identifier.
//
// Tools match by exact name. Resources match a concrete URI against the
// registered templates and return the extracted placeholder values.
// Returns *errors.NotFoundError when nothing matches.
func (r *Registry) Resolve(kind Kind, identifier string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case KindTool:
		if reg, ok := r.tools[identifier]; ok {
			return &Match{Registration: reg, Placeholders: map[string]string{}}, nil
		}

	case KindResource:
		for _, reg := range r.resources {
			if values, ok := reg.template.match(identifier); ok {
				return &Match{Registration: reg, Placeholders: values}, nil
			}
		}
	}

	return nil, &errors.NotFoundError{Category: kind.String(), Identifier: identifier}
}

// Freeze stops accepting registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.frozen {
		r.frozen = true
		r.log.Debug("Registry frozen", "tools", len(r.tools), "resources", len(r.resources))
	}
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.frozen
}

// Tools returns tool registrations in registration order.
func (r *Registry) Tools() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Registration, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		out = append(out, r.tools[name])
	}

	return out
}

// Resources returns resource registrations in registration order.
func (r *Registry) Resources() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.resources)
}
