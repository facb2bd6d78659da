package validate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed field of a struct.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldErrors lists every failed field of a struct.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Engine validates tagged structs with the named rules registered as
// validator tags. The registered names replace the library's own email,
// url and number checks.
type Engine struct {
	v *validator.Validate
}

// NewEngine returns an engine with every rule registered.
func NewEngine() (*Engine, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	for _, name := range Names() {
		r := rules[name]
		err := v.RegisterValidation(name, func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return r.Validate(context.Background(), fl.Field().String()) == nil
		})
		if err != nil {
			return nil, fmt.Errorf("register rule %s: %w", name, err)
		}
	}
	return &Engine{v: v}, nil
}

// Struct validates s. Failures are returned as FieldErrors.
func (e *Engine) Struct(s any) error {
	return e.convert(e.v.Struct(s))
}

// Var validates a single value against a tag expression such as
// "required,mobilePhone".
func (e *Engine) Var(value any, tag string) error {
	return e.convert(e.v.Var(value, tag))
}

func (e *Engine) convert(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	if r, ok := rules[fe.Tag()]; ok {
		return r.Message
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag()
}
