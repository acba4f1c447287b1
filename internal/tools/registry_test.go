package tools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// resultText returns the text of the first content item.
func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)

	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return ""
}

func echoDefinition() Definition {
	return Definition{
		Name: "echo",
		Args: []Arg{
			{Name: "text", Type: TypeString, Required: true},
			{Name: "mode", Type: TypeString, Enum: []string{"loud", "quiet"}},
			{Name: "times", Type: TypeNumber},
			{Name: "dry_run", Type: TypeBoolean},
		},
		Handler: func(_ context.Context, args Args) *mcp.CallToolResult {
			return mcp.NewToolResultText(args.String("text", "") + "/" + args.String("mode", "quiet"))
		},
	}
}

func TestValidateAcceptsAndDropsUnknownKeys(t *testing.T) {
	args, err := Validate(echoDefinition(), map[string]any{
		"text":    "hi",
		"times":   float64(3),
		"dry_run": true,
		"extra":   "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "hi", args.String("text", ""))
	assert.Equal(t, 3, args.Int("times", 0))
	assert.True(t, args.Bool("dry_run", false))
	assert.NotContains(t, args, "extra")
	assert.Equal(t, 7, args.Int("missing", 7))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]map[string]any{
		"missing required": {},
		"wrong type":       {"text": 12},
		"not in enum":      {"text": "hi", "mode": "shouty"},
		"number as string": {"text": "hi", "times": "3"},
		"bool as string":   {"text": "hi", "dry_run": "yes"},
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(echoDefinition(), raw)
			assert.ErrorIs(t, err, ErrArgumentValidation)
		})
	}
}

func TestDispatch(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(echoDefinition())

	res := r.Dispatch(context.Background(), "echo", map[string]any{"text": "hi", "mode": "loud"})
	assert.False(t, res.IsError)
	assert.Equal(t, "hi/loud", resultText(t, res))

	res = r.Dispatch(context.Background(), "echo", map[string]any{"mode": "loud"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "text is required")

	res = r.Dispatch(context.Background(), "nope", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `unknown tool "nope"`)
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(Definition{
		Name: "boom",
		Handler: func(context.Context, Args) *mcp.CallToolResult {
			panic("kaboom")
		},
	})

	res := r.Dispatch(context.Background(), "boom", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "kaboom")
}

func TestRegisterKeepsOrderAndPanicsOnDuplicate(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(Definition{Name: "b"}, Definition{Name: "a"}, Definition{Name: "c"})

	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)

	assert.Panics(t, func() { r.Register(Definition{Name: "a"}) })
}

func TestToMCPToolSchema(t *testing.T) {
	tool := toMCPTool(echoDefinition())

	assert.Equal(t, "echo", tool.Name)
	assert.Equal(t, []string{"text"}, tool.InputSchema.Required)
	require.Contains(t, tool.InputSchema.Properties, "mode")

	mode := tool.InputSchema.Properties["mode"].(map[string]any)
	assert.Equal(t, "string", mode["type"])
	assert.Equal(t, []string{"loud", "quiet"}, mode["enum"])

	times := tool.InputSchema.Properties["times"].(map[string]any)
	assert.Equal(t, "number", times["type"])
}
