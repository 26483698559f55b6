package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type markerForm struct {
	Name        string `form:"name" validate:"required,max=200"`
	Description string `form:"description" validate:"max=2000"`
}

type contentForm struct {
	MarkerID    string `form:"markerId" validate:"required,number"`
	ContentType string `form:"contentType" validate:"required"`
	Position    string `form:"position" validate:"max=100"`
	Scale       string `form:"scale" validate:"max=100"`
	Rotation    string `form:"rotation" validate:"max=100"`
}

type clientErrorForm struct {
	ErrorType    string `json:"errorType" validate:"required,max=100"`
	MarkerID     uint64 `json:"markerId"`
	ErrorDetails string `json:"errorDetails" validate:"max=4000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// check validates form and returns one message per failed field, or nil.
func (s *Server) check(form any) []string {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	issues := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, fieldMessage(fe))
	}
	return issues
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "number":
		return fmt.Sprintf("%s must be a number", fe.Field())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
