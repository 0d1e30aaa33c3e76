package tasks

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidName is returned for microservice names init refuses to store.
var ErrInvalidName = errors.New("invalid microservice name")

// A letter first, then at least one letter, digit or hyphen.
var namePattern = regexp.MustCompile(`^[a-zA-Z]+[a-zA-Z0-9-]+$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("msname", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// ValidateName checks a microservice name before it is persisted.
func ValidateName(name string) error {
	if err := validate.Var(name, "required,msname"); err != nil {
		return fmt.Errorf("%w: %q (must start with a letter, contain only letters, digits and hyphens, and be at least 2 characters long)", ErrInvalidName, name)
	}
	return nil
}
