// Package validation registers the custom binding rules used by request DTOs.
package validation

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var numericAnswer = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// AnswerOption accepts a multiple-choice letter A to D in any case or a
// numeric answer for numerical questions.
func AnswerOption(fl validator.FieldLevel) bool {
	v := strings.TrimSpace(fl.Field().String())
	if v == "" {
		return true
	}
	switch strings.ToUpper(v) {
	case "A", "B", "C", "D":
		return true
	}
	return numericAnswer.MatchString(v)
}

// Register installs the custom rules on gin's validator engine.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("answer_option", AnswerOption)
}
