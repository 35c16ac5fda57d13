// Package tools defines the server-side capabilities exposed to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Executor runs one tool invocation. The returned value is serialized to JSON
// before it is handed back to the model.
type Executor func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs the model-facing schema with its executor.
type Tool struct {
	Info *schema.ToolInfo
	Run  Executor
}

// Registry holds the fixed set of tools offered on every completion request.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry populated with the builtin tools.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.registerBuiltins()
	return r
}

// Register adds a tool. Re-registering a name replaces the previous entry.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Info.Name]; !exists {
		r.order = append(r.order, t.Info.Name)
	}
	r.tools[t.Info.Name] = t
}

// Schemas exports the tool-calling contract passed verbatim to the model.
func (r *Registry) Schemas() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tools[name].Info)
	}
	return infos
}

// Invoke executes the named tool and returns its result serialized as JSON.
// An unknown name yields a structured error payload rather than an error;
// executor failures are returned to the caller untouched.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		payload, _ := json.Marshal(map[string]string{"error": "Unknown tool"})
		return string(payload), nil
	}

	result, err := t.Run(ctx, args)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("serializing %s result: %w", name, err)
	}
	return string(payload), nil
}

func (r *Registry) registerBuiltins() {
	r.Register(Tool{
		Info: &schema.ToolInfo{
			Name: "fetch_user_data",
			Desc: "Fetch detailed user profile and subscription information",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type:     schema.String,
					Desc:     "The user ID to fetch data for",
					Required: true,
				},
			}),
		},
		Run: fetchUserData,
	})

	r.Register(Tool{
		Info: &schema.ToolInfo{
			Name: "search_knowledge_base",
			Desc: "Search internal knowledge base for information about a topic",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "The search query or topic to look up",
					Required: true,
				},
			}),
		},
		Run: searchKnowledgeBase,
	})
}

func fetchUserData(ctx context.Context, args map[string]any) (any, error) {
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	simulateLatency(ctx, 500*time.Millisecond)

	name := userID
	if len(name) > 8 {
		name = name[:8]
	}

	return map[string]any{
		"user_id":    userID,
		"name":       "User_" + name,
		"tier":       "premium",
		"created_at": "2024-01-15",
	}, nil
}

func searchKnowledgeBase(ctx context.Context, args map[string]any) (any, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("query is required")
	}

	simulateLatency(ctx, 300*time.Millisecond)

	return map[string]any{
		"results": []string{
			fmt.Sprintf("Result for '%s' #1", query),
			fmt.Sprintf("Result for '%s' #2", query),
		},
	}, nil
}

// simulateLatency stands in for upstream I/O the builtin tools would perform.
func simulateLatency(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
