// Package registry holds the lookup table of action executor factories keyed
// by action type.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/driphq/drip/pkg/models"
	"github.com/driphq/drip/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger            *slog.Logger
	executorFactories map[models.ActionType]protocol.ExecutorFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:            log,
		executorFactories: make(map[models.ActionType]protocol.ExecutorFactory),
	}
}

func (r *Registry) RegisterExecutor(factory protocol.ExecutorFactory) {
	r.executorFactories[factory.ID()] = factory
}

func (r *Registry) CreateExecutor(actionType models.ActionType, params map[string]any) (protocol.ActionExecutor, error) {
	factory, ok := r.executorFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", actionType)
	}

	return factory.Create(params)
}

// IsRegistered checks if an action type has a registered executor factory.
func (r *Registry) IsRegistered(actionType models.ActionType) bool {
	_, exists := r.executorFactories[actionType]

	return exists
}

// ValidateParameters checks an action's parameters against the registered
// factory's JSON Schema. Called at rule-save time so malformed rules are
// rejected before they can ever reach dispatch.
func (r *Registry) ValidateParameters(actionType models.ActionType, params map[string]any) error {
	factory, ok := r.executorFactories[actionType]
	if !ok {
		return fmt.Errorf("action type '%s' not registered", actionType)
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(params)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate parameters for '%s': %w", actionType, err)
	}

	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			detail += desc.String() + "; "
		}

		return fmt.Errorf("invalid parameters for '%s': %s", actionType, detail)
	}

	return nil
}
