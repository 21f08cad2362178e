package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	execute func(ctx context.Context, arguments string) (string, error)
}

// NewTool declares a tool whose parameter schema is reflected from T. The
// handler receives the model's arguments decoded into T. T must be a named
// struct type; the reflector cannot expand anonymous structs.
func NewTool[T any](name, description string, handler func(context.Context, T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.ReflectFromType(reflect.TypeFor[T]())
	schema.Version = ""

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		execute: func(ctx context.Context, arguments string) (string, error) {
			var parameters T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &parameters); err != nil {
					return "", fmt.Errorf("invalid arguments for tool %q: %w", name, err)
				}
			}
			return handler(ctx, parameters)
		},
	}
}

// CanExecute reports whether the tool runs locally. Declaration-only tools
// are resolved by whoever serves the model.
func (t Tool) CanExecute() bool { return t.execute != nil }

func (t Tool) Execute(ctx context.Context, arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %q has no local handler", t.Name)
	}
	return t.execute(ctx, arguments)
}
