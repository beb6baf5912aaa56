package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// ValidationError lists the request fields that failed their schema.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindInvalidRequest, apperrors.KindConflict:
		return fiber.StatusBadRequest
	case apperrors.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperrors.KindForbidden:
		return fiber.StatusForbidden
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler as {"message": ...}.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  verr.Fields,
			})
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		kind := apperrors.KindOf(err)
		status := StatusCode(kind)
		if status == fiber.StatusInternalServerError {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		} else {
			log.Debug("request rejected", "method", c.Method(), "path", c.Path(), "kind", kind.String(), "error", err)
		}
		return c.Status(status).JSON(fiber.Map{"message": apperrors.MessageOf(err)})
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into dst and validates it.
func bind(c *fiber.Ctx, v *validator.Validate, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.InvalidRequest("Invalid request body")
	}
	if err := v.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return apperrors.Internal(err, "failed to validate request")
		}
		fields := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			field := strings.SplitN(e.Namespace(), ".", 2)
			name := e.Field()
			if len(field) == 2 {
				name = field[1]
			}
			fields[name] = fmt.Sprintf("Field '%s' failed on the '%s' tag", name, e.Tag())
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

// pageQuery reads ?page= and ?limit=. Normalization is left to the services.
func pageQuery(c *fiber.Ctx) models.PageRequest {
	return models.PageRequest{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 0),
	}
}
