// Package tools exposes memory-bank operations as named tools taking JSON
// arguments, so an agent pipeline can drive the store without linking
// against it directly.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Definition describes a tool to a caller.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Call is one invocation of a tool. Args holds a JSON object.
type Call struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// Executor runs a tool call and returns its JSON result.
type Executor func(ctx context.Context, call Call) (string, error)

// Registry manages available tools and their execution.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Definition
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Definition),
		executors: make(map[string]Executor),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Definition, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}

	r.tools[tool.Name] = tool
	r.executors[tool.Name] = executor
	return nil
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
	delete(r.executors, name)
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Execute runs a tool and returns its result.
func (r *Registry) Execute(ctx context.Context, call Call) (string, error) {
	r.mu.RLock()
	executor, ok := r.executors[call.Name]
	r.mu.RUnlock()

	if !ok || executor == nil {
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}

	return executor(ctx, call)
}

func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// FunctionSchemas returns tool definitions in the function-calling shape
// most model APIs accept.
func (r *Registry) FunctionSchemas() []map[string]interface{} {
	tools := r.List()
	result := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		result = append(result, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return result
}
