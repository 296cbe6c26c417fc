package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/strcase"
)

var (
	// Based on NIST 800-63B Guidelines
	rePassword = regexp.MustCompile(`^.{8,72}$`)
	reOTPCode  = regexp.MustCompile(`^[0-9]{6}$`)
	reAlpha    = regexp.MustCompile(`^[\p{L} .'-]+$`)

	otpPurposes = map[string]struct{}{
		"REGISTRATION":   {},
		"PASSWORD_RESET": {},
	}
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError is a field-to-message map returned when validation fails.
type V10ValidationError map[string]string

// Error implements the error interface.
func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

type customRule struct {
	tag     string
	message string
	fn      func(string) bool
}

var customRules = []customRule{
	{tag: "password", message: "{0} must be 8-72 characters", fn: rePassword.MatchString},
	{tag: "otp_code", message: "{0} must be exactly 6 digits", fn: reOTPCode.MatchString},
	{tag: "person_name", message: "{0} can contain only letters, spaces and the marks . ' -", fn: reAlpha.MatchString},
	{
		tag:     "otp_purpose",
		message: "{0} must be one of REGISTRATION or PASSWORD_RESET",
		fn: func(s string) bool {
			_, ok := otpPurposes[s]
			return ok
		},
	},
}

// NewV10Validator constructs a V10Validator with English translations and custom rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	for _, rule := range customRules {
		if err := registerRule(validate, enTrans, rule); err != nil {
			return nil, fmt.Errorf("register rule %s: %w", rule.tag, err)
		}
	}

	return &V10Validator{
		validate:   validate,
		translator: enTrans,
	}, nil
}

// Validate validates a struct and returns a V10ValidationError on failure.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}

	errV10 := make(V10ValidationError, len(validateErrs))
	for _, fe := range validateErrs {
		errV10[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}

	return errV10
}

func registerRule(validate *validator.Validate, trans ut.Translator, rule customRule) error {
	err := validate.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
		field := fl.Field()
		return field.Kind() == reflect.String && rule.fn(field.String())
	})
	if err != nil {
		return err
	}

	return validate.RegisterTranslation(rule.tag, trans,
		func(t ut.Translator) error {
			return t.Add(rule.tag, rule.message, false)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				slog.Warn("failed to translate validation error", "tag", fe.Tag(), "error", err)
				return fe.Error()
			}
			return msg
		},
	)
}
