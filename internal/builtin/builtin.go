// Package builtin provides the arithmetic tools and informational resources
// every server registers unless told otherwise.
package builtin

import (
	"fmt"

	"github.com/wagiedev/cwmanager/internal/registry"
	"github.com/wagiedev/cwmanager/internal/schema"
)

// Registrations returns the built-in tools and resources for a server with
// the given name.
func Registrations(serverName string) []registry.Registration {
	operands := schema.Params{
		schema.Required("a", schema.Number).Describe("First operand"),
		schema.Required("b", schema.Number).Describe("Second operand"),
	}

	return []registry.Registration{
		{
			Name:        "add",
			Kind:        registry.KindTool,
			Description: "Add two numbers",
			Params:      operands,
			Handler:     registry.Func(Add),
		},
		{
			Name:        "multiply",
			Kind:        registry.KindTool,
			Description: "Multiply two numbers",
			Params:      operands,
			Handler:     registry.Func(Multiply),
		},
		{
			Name:        "greeting://{name}",
			Kind:        registry.KindResource,
			Description: "Get a personalized greeting",
			Params: schema.Params{
				schema.Required("name", schema.String).Describe("Name to greet"),
			},
			Handler: registry.Func(Greeting),
		},
		{
			Name:        "info://server",
			Kind:        registry.KindResource,
			Description: "Get server information",
			Handler: registry.Func(func() string {
				return ServerInfo(serverName)
			}),
		},
	}
}

// Register adds every built-in registration to reg.
func Register(reg *registry.Registry, serverName string) error {
	for _, r := range Registrations(serverName) {
		if err := reg.Register(r); err != nil {
			return fmt.Errorf("register builtin %s %q: %w", r.Kind, r.Name, err)
		}
	}

	return nil
}

// Add returns a + b.
func Add(a, b float64) float64 {
	return a + b
}

// Multiply returns a * b.
func Multiply(a, b float64) float64 {
	return a * b
}

// Greeting returns a personalized greeting.
func Greeting(name string) string {
	return "Hello, " + name + "!"
}

// ServerInfo describes the server.
func ServerInfo(serverName string) string {
	return "This is a sample MCP server for " + serverName
}
