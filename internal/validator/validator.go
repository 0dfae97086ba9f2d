package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/models"
)

type ValidationErrors = apperrors.ValidationErrors

// Validator checks request payloads against their validate tags
type Validator struct {
	structValidator *validator.Validate
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)
	return &Validator{structValidator: structValidator}
}

// Validate reports tag failures as ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}
	if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
		return errs
	}
	return err
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("subject", validateSubject)
	validate.RegisterValidation("difficulty_level", validateDifficultyLevel)
	validate.RegisterValidation("question_kind", validateQuestionKind)
	validate.RegisterValidation("question_format", validateQuestionFormat)

	// Report json names so clients see the fields they sent
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateSubject accepts any subject name made of letters, digits, spaces, underscores and hyphens.
func validateSubject(fl validator.FieldLevel) bool {
	value := credits.NormalizeSubject(fl.Field().String())
	if value == "" || len(value) > 64 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == ' ':
		default:
			return false
		}
	}
	return true
}

func validateDifficultyLevel(fl validator.FieldLevel) bool {
	switch models.DifficultyLevel(fl.Field().String()) {
	case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
		return true
	}
	return false
}

func validateQuestionKind(fl validator.FieldLevel) bool {
	switch models.QuestionKind(fl.Field().String()) {
	case models.KindTopical, models.KindExam:
		return true
	}
	return false
}

var validFormats = map[string]bool{
	"structured":      true,
	"multiple_choice": true,
	"short_answer":    true,
	"essay":           true,
}

func validateQuestionFormat(fl validator.FieldLevel) bool {
	return validFormats[strings.ToLower(fl.Field().String())]
}
