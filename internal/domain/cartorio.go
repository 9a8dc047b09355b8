package domain

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Cartorio is a registry office managed through the backend CRUD endpoints.
type Cartorio struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	CNPJ  string `json:"cnpj"`
}

// CartorioInput is the body accepted for create and update.
type CartorioInput struct {
	Nome  string `json:"nome" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	CNPJ  string `json:"cnpj" validate:"required,cnpj"`
}

// Normalize trims whitespace and reduces the CNPJ to its digits.
func (in *CartorioInput) Normalize() {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = strings.TrimSpace(in.Email)
	in.CNPJ = CNPJDigits(in.CNPJ)
}

// Validate normalizes the input and reports every invalid field.
func (in *CartorioInput) Validate() error {
	in.Normalize()
	if err := validate().Struct(in); err != nil {
		return FromValidatorError(err)
	}
	return nil
}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func validate() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("cnpj", cnpjField)
		validatorInst = v
	})
	return validatorInst
}

func cnpjField(fl validator.FieldLevel) bool {
	return ValidCNPJ(fl.Field().String())
}

// FromValidatorError maps validator tags to field problems.
// Errors that are not validation failures are returned unchanged.
func FromValidatorError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	problems := map[string][]string{}
	for _, fe := range ve {
		field := strings.ToLower(fe.Field())

		switch fe.Tag() {
		case "required":
			problems[field] = append(problems[field], "campo obrigatório")
		case "max":
			problems[field] = append(problems[field], "valor muito longo, máximo: "+fe.Param())
		case "email":
			problems[field] = append(problems[field], "e-mail inválido")
		case "cnpj":
			problems[field] = append(problems[field], "CNPJ inválido")
		default:
			problems[field] = append(problems[field], "valor inválido")
		}
	}

	return &ValidationError{Problems: problems}
}

// CNPJDigits strips everything but digits.
func CNPJDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCNPJ checks length, repeated digits and both check digits.
func ValidCNPJ(s string) bool {
	digits := CNPJDigits(s)
	if len(digits) != 14 {
		return false
	}
	if strings.Count(digits, digits[:1]) == 14 {
		return false
	}

	first := cnpjCheckDigit(digits[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	second := cnpjCheckDigit(digits[:12]+string(rune('0'+first)), []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})

	return int(digits[12]-'0') == first && int(digits[13]-'0') == second
}

func cnpjCheckDigit(base string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(base[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}
