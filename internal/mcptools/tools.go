// Package mcptools exposes the gateway operations as MCP tool calls.
package mcptools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/vbonduro/nutriai/internal/audit"
	"github.com/vbonduro/nutriai/internal/domain"
)

// Gateway is the subset of *gateway.Gateway the tools call.
type Gateway interface {
	GenerateRecipes(ctx context.Context, prompt string, p domain.Provider) ([]domain.Recipe, error)
	EstimateCaloriesFromPhoto(ctx context.Context, image []byte, note string, p domain.Provider) (domain.CalorieEstimate, error)
	EstimateCaloriesFromText(ctx context.Context, description string, p domain.Provider) (domain.CalorieEstimate, error)
	GeneratePlan(ctx context.Context, req domain.PlanRequest, p domain.Provider) (domain.Plan, error)
	CallText(ctx context.Context, req domain.TextRequest, p domain.Provider) (string, error)
}

// UnknownToolError is returned when a request names a tool that does not exist.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

type handler func(ctx context.Context, req *protocol.CallToolRequest) (any, error)

type tool struct {
	def    *protocol.Tool
	handle handler
}

type Tools struct {
	gateway         Gateway
	logs            audit.Reader
	defaultProvider domain.Provider
	tools           []tool
}

func New(gw Gateway, logs audit.Reader, defaultProvider domain.Provider) *Tools {
	t := &Tools{gateway: gw, logs: logs, defaultProvider: defaultProvider}
	t.tools = []tool{
		{newTool("generate_recipes", "Suggest recipes for a prompt", []string{"prompt"}, map[string]*protocol.Property{
			"prompt":   stringProp("What to cook, ingredients on hand or dietary wishes"),
			"provider": providerProp,
		}), t.generateRecipes},
		{newTool("estimate_calories_text", "Estimate calories of a described meal", []string{"description"}, map[string]*protocol.Property{
			"description": stringProp("The meal in words"),
			"provider":    providerProp,
		}), t.estimateCaloriesText},
		{newTool("estimate_calories_photo", "Estimate calories of a meal photo", []string{"image_base64"}, map[string]*protocol.Property{
			"image_base64": stringProp("JPEG, PNG, GIF or WebP image, base64 encoded"),
			"note":         stringProp("Optional context such as portion size"),
			"provider":     providerProp,
		}), t.estimateCaloriesPhoto},
		{newTool("generate_plan", "Write a training plan", []string{"goal", "weeks", "sessions_per_week", "minutes_per_session"}, map[string]*protocol.Property{
			"goal":                stringProp("Training goal"),
			"weeks":               intProp("Plan length in weeks"),
			"sessions_per_week":   intProp("Sessions per week"),
			"minutes_per_session": intProp("Minutes per session"),
			"equipment":           {Type: protocol.Array, Description: "Available equipment", Items: stringProp("")},
			"provider":            providerProp,
		}), t.generatePlan},
		{newTool("call_text", "Send a free-form prompt and return the raw answer", []string{"user"}, map[string]*protocol.Property{
			"system":   stringProp("Optional system prompt"),
			"user":     stringProp("User prompt"),
			"provider": providerProp,
		}), t.callText},
		{newTool("latest_ai_logs", "List the most recent AI calls", nil, map[string]*protocol.Property{
			"limit": intProp(fmt.Sprintf("Number of entries, default %d", audit.DefaultLimit)),
		}), t.latestLogs},
	}
	return t
}

var providerProp = stringProp("openai, gemini or deepseek; blank uses the configured default")

func newTool(name, description string, required []string, props map[string]*protocol.Property) *protocol.Tool {
	return &protocol.Tool{
		Name:        name,
		Description: description,
		InputSchema: protocol.InputSchema{
			Type:       protocol.ObjectT,
			Properties: props,
			Required:   required,
		},
	}
}

func stringProp(description string) *protocol.Property {
	return &protocol.Property{Type: protocol.String, Description: description}
}

func intProp(description string) *protocol.Property {
	return &protocol.Property{Type: protocol.Integer, Description: description}
}

// List returns the tool definitions in a stable order.
func (t *Tools) List() *protocol.ListToolsResult {
	out := make([]*protocol.Tool, 0, len(t.tools))
	for _, tl := range t.tools {
		out = append(out, tl.def)
	}
	return &protocol.ListToolsResult{Tools: out}
}

// Call runs the named tool. The result carries one text item holding JSON.
func (t *Tools) Call(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	for _, tl := range t.tools {
		if tl.def.Name == req.Name {
			v, err := tl.handle(ctx, req)
			if err != nil {
				return nil, err
			}
			return jsonResult(v)
		}
	}
	return nil, &UnknownToolError{Name: req.Name}
}

func jsonResult(v any) (*protocol.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			&protocol.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// extractParams decodes the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target any) error {
	data, err := json.Marshal(req.Arguments)
	if err != nil {
		return &domain.ValidationError{Field: "arguments", Reason: err.Error()}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &domain.ValidationError{Field: "arguments", Reason: err.Error()}
	}
	return nil
}

func (t *Tools) provider(name string) domain.Provider {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return t.defaultProvider
	}
	return domain.Provider(name)
}

type recipesParams struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
}

func (t *Tools) generateRecipes(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p recipesParams
	if err := extractParams(req, &p); err != nil {
		return nil, err
	}
	recipes, err := t.gateway.GenerateRecipes(ctx, p.Prompt, t.provider(p.Provider))
	if err != nil {
		return nil, err
	}
	return map[string]any{"recipes": recipes}, nil
}

type caloriesTextParams struct {
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

func (t *Tools) estimateCaloriesText(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p caloriesTextParams
	if err := extractParams(req, &p); err != nil {
		return nil, err
	}
	return t.gateway.EstimateCaloriesFromText(ctx, p.Description, t.provider(p.Provider))
}

type caloriesPhotoParams struct {
	ImageBase64 string `json:"image_base64"`
	Note        string `json:"note"`
	Provider    string `json:"provider"`
}

func (t *Tools) estimateCaloriesPhoto(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p caloriesPhotoParams
	if err := extractParams(req, &p); err != nil {
		return nil, err
	}
	image, err := base64.StdEncoding.DecodeString(p.ImageBase64)
	if err != nil {
		return nil, &domain.ValidationError{Field: "image_base64", Reason: "not valid base64"}
	}
	return t.gateway.EstimateCaloriesFromPhoto(ctx, image, p.Note, t.provider(p.Provider))
}

type planParams struct {
	domain.PlanRequest
	Provider string `json:"provider"`
}

func (t *Tools) generatePlan(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p planParams
	if err := extractParams(req, &p); err != nil {
		return nil, err
	}
	return t.gateway.GeneratePlan(ctx, p.PlanRequest, t.provider(p.Provider))
}

type textParams struct {
	System   string `json:"system"`
	User     string `json:"user"`
	Provider string `json:"provider"`
}

func (t *Tools) callText(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p textParams
	if err := extractParams(req, &p); err != nil {
		return nil, err
	}
	text, err := t.gateway.CallText(ctx, domain.TextRequest{System: p.System, User: p.User}, t.provider(p.Provider))
	if err != nil {
		return nil, err
	}
	return map[string]string{"text": text}, nil
}

type logsParams struct {
	Limit int `json:"limit"`
}

func (t *Tools) latestLogs(ctx context.Context, req *protocol.CallToolRequest) (any, error) {
	var p logsParams
	if err := extractParams(req, &p); err != nil {
		return nil, err
	}
	entries, err := t.logs.Latest(ctx, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read ai logs: %w", err)
	}
	return map[string]any{"entries": entries}, nil
}
