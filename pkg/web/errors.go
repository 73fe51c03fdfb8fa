package web

import (
	"errors"

	"github.com/driphq/drip/pkg/conditions"
	"github.com/driphq/drip/pkg/engine"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine errors onto problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, engine.ErrRuleNotFound):
		return notFound(c, "Rule not found")
	case errors.Is(err, engine.ErrExecutionNotFound):
		return notFound(c, "Execution not found")
	case errors.Is(err, engine.ErrExecutionNotActive):
		return conflict(c, "Execution is not active")
	case isRuleValidationError(err):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

// isRuleValidationError reports whether the error is caused by malformed
// caller input rather than by an engine or storage failure.
func isRuleValidationError(err error) bool {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return true
	}

	return errors.Is(err, engine.ErrInvalidRule) ||
		errors.Is(err, engine.ErrUnknownEventType) ||
		errors.Is(err, engine.ErrMissingUserID) ||
		errors.Is(err, engine.ErrUnknownActionType) ||
		errors.Is(err, conditions.ErrUnknownConditionKey) ||
		errors.Is(err, conditions.ErrInvalidOperator) ||
		errors.Is(err, conditions.ErrInvalidHistoryCondition)
}
