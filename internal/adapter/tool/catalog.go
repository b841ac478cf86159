package tool

import (
	"fmt"
	"log/slog"
	"sync"

	"wattwise/internal/domain"
)

// Catalog holds tool definitions in registration order. Providers receive
// schemas in this order on every completion request, so the order must be
// deterministic across process restarts.
type Catalog struct {
	mu        sync.RWMutex
	order     []string
	byName    map[string]domain.ToolDefinition
	validator *Validator
	logger    *slog.Logger
}

// NewCatalog creates an empty catalog. If logger is non-nil, schemas are
// compiled for argument validation on Register; compilation errors are
// logged and the definition is registered without validation.
func NewCatalog(logger *slog.Logger) *Catalog {
	return &Catalog{
		byName:    make(map[string]domain.ToolDefinition),
		validator: NewValidator(),
		logger:    logger,
	}
}

// NewDefaultCatalog returns a catalog preloaded with the built-in tool set.
func NewDefaultCatalog(logger *slog.Logger) *Catalog {
	c := NewCatalog(logger)
	for _, def := range Definitions() {
		// Built-in schemas are static; a registration failure here is a bug.
		if err := c.Register(def); err != nil {
			panic(err)
		}
	}
	return c
}

// Register adds a definition. Returns error if the name is already taken.
func (c *Catalog) Register(def domain.ToolDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}

	if err := c.validator.AddSchema(def.Name, def.Parameters); err != nil {
		if c.logger != nil {
			c.logger.Warn("schema validation disabled for tool",
				"tool", def.Name, "error", err)
		}
	}

	c.order = append(c.order, def.Name)
	c.byName[def.Name] = def
	return nil
}

// Lookup retrieves a definition by name.
func (c *Catalog) Lookup(name string) (domain.ToolDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.byName[name]
	return def, ok
}

// Definitions returns all definitions in registration order.
func (c *Catalog) Definitions() []domain.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.byName[name])
	}
	return defs
}

// Schemas returns all tool schemas for LLM function-calling, in
// registration order.
func (c *Catalog) Schemas() []domain.ToolSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(c.order))
	for _, name := range c.order {
		schemas = append(schemas, c.byName[name].Schema())
	}
	return schemas
}

// Validate checks arguments against the tool's compiled schema. Tools whose
// schema failed to compile validate as a no-op.
func (c *Catalog) Validate(name string, args []byte) error {
	return c.validator.Validate(name, args)
}
