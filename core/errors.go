package core

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// FieldErrorMap flattens the field errors into a field -> message map.
func (err ValidationError) FieldErrorMap() map[string]string {
	if err.Fields == nil {
		return nil
	}
	flds := make(map[string]string, len(err.Fields))
	for _, fErr := range err.Fields {
		flds[fErr.Field] = fErr.Error
	}
	return flds
}

// TranslateValidationErrors renders validator errors with the given translator, keyed by JSON field name.
func TranslateValidationErrors(vErrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	flds := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		flds[vErr.Field()] = vErr.Translate(translator)
	}
	return flds
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
