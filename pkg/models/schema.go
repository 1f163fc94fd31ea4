package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateAuditMessage checks that a job names an audit type and exactly
// identifies a site through either siteId or url.
func ValidateAuditMessage(msg *AuditMessage) error {
	if msg == nil {
		return &ValidationError{
			Field:   "message",
			Message: "audit message cannot be nil",
		}
	}

	msg.Type = strings.TrimSpace(msg.Type)

	err := validate.Struct(msg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "message", Message: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.StructField() {
	case "Type":
		return &ValidationError{Field: "type", Message: "audit type is required"}
	case "URL", "SiteID":
		return &ValidationError{Field: "siteId", Message: "either siteId or url is required"}
	default:
		return &ValidationError{Field: fe.Field(), Message: fe.Error()}
	}
}
