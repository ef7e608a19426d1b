package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

func bindAndValidateQuery(c *gin.Context, dst any) bool {
	return bindAndValidate(c, dst, c.ShouldBindQuery, "invalid query parameters")
}

func bindAndValidateJSON(c *gin.Context, dst any) bool {
	return bindAndValidate(c, dst, c.ShouldBindJSON, "invalid request body")
}

func bindAndValidate(c *gin.Context, dst any, bind func(any) error, syntaxMessage string) bool {
	err := bind(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, formatValidationErrors(verrs))
		return false
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Message: syntaxMessage,
		Errors: []FieldError{
			{
				Field:   "",
				Rule:    "syntax",
				Message: err.Error(),
			},
		},
	})
	return false
}

func formatValidationErrors(verrs validator.ValidationErrors) ErrorResponse {
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		name := toJSONFieldName(fe.Field())
		fields = append(fields, FieldError{
			Field:   name,
			Rule:    fe.Tag(),
			Message: buildMessage(name, fe),
		})
	}
	return ErrorResponse{
		Message: "validation failed",
		Errors:  fields,
	}
}

func toJSONFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func buildMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "max":
		return field + " is out of range (" + fe.Tag() + "=" + fe.Param() + ")"
	}
	return field + " is invalid (" + fe.Tag() + ")"
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    code,
		Message: message,
		Errors:  []FieldError{},
	})
}
