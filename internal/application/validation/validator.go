// Package validation checks command structs with go-playground/validator and
// converts failures into domain validation errors with English messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// Validator wraps a configured validator instance.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
	defaultErr  error
)

// Default returns a process-wide Validator. validator.Validate caches struct
// metadata, so sharing one instance is the intended usage.
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultV, defaultErr = New()
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultV
}

// New builds a Validator with English translations. Field names in messages
// come from the json tag.
func New() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: validate, trans: trans}, nil
}

// Struct validates s. Failures come back as a *shared.DomainError of kind
// ErrValidation for the given domain and op.
func (v *Validator) Struct(domain, op string, s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid input", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(v.trans))
	}
	return shared.ValidationError(domain, op, strings.Join(msgs, "; "))
}
