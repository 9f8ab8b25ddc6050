package cwmanager

// ResourceOption configures a resource registration.
type ResourceOption func(*Registration)

// WithMIMEType sets the MIME type reported for a resource's contents.
func WithMIMEType(mimeType string) ResourceOption {
	return func(r *Registration) {
		r.MIMEType = mimeType
	}
}

// NewTool creates a tool registration.
//
// Example:
//
//	tool := cwmanager.NewTool("add", "Add two numbers",
//	    cwmanager.Params{
//	        cwmanager.Required("a", cwmanager.Number),
//	        cwmanager.Required("b", cwmanager.Number),
//	    },
//	    cwmanager.Func(func(a, b float64) float64 { return a + b }),
//	)
func NewTool(name, description string, params Params, handler Handler) Registration {
	return Registration{
		Name:        name,
		Kind:        KindTool,
		Description: description,
		Params:      params,
		Handler:     handler,
	}
}

// NewResource creates a resource registration for a URI template.
//
// Every {placeholder} in the template must be declared in params. The
// handler must return a string.
func NewResource(template, description string, params Params, handler Handler, opts ...ResourceOption) Registration {
	reg := Registration{
		Name:        template,
		Kind:        KindResource,
		Description: description,
		Params:      params,
		Handler:     handler,
	}

	for _, opt := range opts {
		opt(&reg)
	}

	return reg
}
