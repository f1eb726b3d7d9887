package datastructures

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a prediction result received from the prediction service.
func (p *PredictionResult) Validate() error {
	return describe("prediction result", validate.Struct(p))
}

func (s *Statistics) Validate() error {
	return describe("statistics", validate.Struct(s))
}

func describe(what string, err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid %s: %w", what, err)
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
	}
	return fmt.Errorf("invalid %s: %s: %w", what, strings.Join(fields, ", "), err)
}
