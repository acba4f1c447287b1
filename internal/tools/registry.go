// Package tools holds the MCP tool catalog of the bridge: definitions,
// argument validation, dispatch and registration with mcp-go.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

var ErrArgumentValidation = errors.New("invalid arguments")

// ArgType is the JSON type of a tool argument.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
)

// Arg describes one tool argument.
type Arg struct {
	Name        string
	Type        ArgType
	Required    bool
	Enum        []string // strings only
	Description string
}

// Handler runs a validated tool call. It reports failures through the
// returned result, never through a Go error.
type Handler func(ctx context.Context, args Args) *mcp.CallToolResult

// Definition is a named tool with its argument schema and handler.
type Definition struct {
	Name        string
	Description string
	Args        []Arg
	Handler     Handler
}

// Args are validated call arguments.
type Args map[string]any

// String returns the string argument name, or def when absent.
func (a Args) String(name, def string) string {
	if v, ok := a[name].(string); ok {
		return v
	}
	return def
}

// Int returns the number argument name truncated to an int, or def when
// absent.
func (a Args) Int(name string, def int) int {
	if v, ok := toFloat(a[name]); ok {
		return int(v)
	}
	return def
}

// Bool returns the boolean argument name, or def when absent.
func (a Args) Bool(name string, def bool) bool {
	if v, ok := a[name].(bool); ok {
		return v
	}
	return def
}

// Registry is the ordered tool catalog.
type Registry struct {
	defs   []Definition
	index  map[string]int
	logger *zap.Logger
}

// NewRegistry creates an empty catalog that logs dispatches to logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		index:  make(map[string]int),
		logger: logger,
	}
}

// Register adds definitions in order. A duplicate name panics.
func (r *Registry) Register(defs ...Definition) {
	for _, def := range defs {
		if _, dup := r.index[def.Name]; dup {
			panic(fmt.Sprintf("tools: duplicate tool %q", def.Name))
		}
		r.index[def.Name] = len(r.defs)
		r.defs = append(r.defs, def)
	}
}

// Definitions returns the catalog in registration order.
func (r *Registry) Definitions() []Definition {
	return slices.Clone(r.defs)
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Dispatch validates raw against the named tool and runs its handler. Every
// failure, including a handler panic, comes back as an error result.
func (r *Registry) Dispatch(ctx context.Context, name string, raw map[string]any) (result *mcp.CallToolResult) {
	def, ok := r.Lookup(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown tool %q", name))
	}

	args, err := Validate(def, raw)
	if err != nil {
		r.logger.Debug("rejected tool call", zap.String("tool", name), zap.Error(err))
		return mcp.NewToolResultError(err.Error())
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked", zap.String("tool", name), zap.Any("panic", p), zap.Stack("stack"))
			result = mcp.NewToolResultError(fmt.Sprintf("internal error in %s: %v", name, p))
		}
	}()

	r.logger.Debug("dispatching tool call", zap.String("tool", name))
	result = def.Handler(ctx, args)
	if result == nil {
		result = mcp.NewToolResultError(fmt.Sprintf("%s returned no result", name))
	}
	return result
}

// Validate checks raw against def: required arguments present, types match,
// enum membership. Unknown keys are dropped.
func Validate(def Definition, raw map[string]any) (Args, error) {
	args := make(Args, len(def.Args))
	var problems []string

	for _, a := range def.Args {
		v, present := raw[a.Name]
		if !present || v == nil {
			if a.Required {
				problems = append(problems, fmt.Sprintf("%s is required", a.Name))
			}
			continue
		}

		switch a.Type {
		case TypeString:
			s, ok := v.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s must be a string", a.Name))
				continue
			}
			if len(a.Enum) > 0 && !slices.Contains(a.Enum, s) {
				problems = append(problems, fmt.Sprintf("%s must be one of: %s", a.Name, strings.Join(a.Enum, ", ")))
				continue
			}
			args[a.Name] = s
		case TypeNumber:
			f, ok := toFloat(v)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				problems = append(problems, fmt.Sprintf("%s must be a number", a.Name))
				continue
			}
			args[a.Name] = f
		case TypeBoolean:
			b, ok := v.(bool)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s must be a boolean", a.Name))
				continue
			}
			args[a.Name] = b
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w for %s: %s", ErrArgumentValidation, def.Name, strings.Join(problems, "; "))
	}
	return args, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Bind registers every definition with s. Calls are routed through Dispatch.
func (r *Registry) Bind(s *server.MCPServer) {
	for _, def := range r.defs {
		name := def.Name
		s.AddTool(toMCPTool(def), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return r.Dispatch(ctx, name, req.GetArguments()), nil
		})
	}
}

func toMCPTool(def Definition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}

	for _, a := range def.Args {
		props := []mcp.PropertyOption{mcp.Description(a.Description)}
		if a.Required {
			props = append(props, mcp.Required())
		}
		if len(a.Enum) > 0 {
			props = append(props, mcp.Enum(a.Enum...))
		}

		switch a.Type {
		case TypeString:
			opts = append(opts, mcp.WithString(a.Name, props...))
		case TypeNumber:
			opts = append(opts, mcp.WithNumber(a.Name, props...))
		case TypeBoolean:
			opts = append(opts, mcp.WithBoolean(a.Name, props...))
		}
	}

	return mcp.NewTool(def.Name, opts...)
}
