// pkg/config/validate.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is the sentinel wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError reports the first config key that failed validation.
type FieldError struct {
	Key   string // dotted koanf key, e.g. printer.port
	Rule  string // failing validator tag
	Param string
	Value any
}

func (e *FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: value %v violates %s=%s", e.Key, e.Value, e.Rule, e.Param)
	}
	return fmt.Sprintf("%s: value %v violates %s", e.Key, e.Value, e.Rule)
}

func (e *FieldError) Unwrap() error { return ErrInvalidConfig }

// IsPort reports whether the failing key is a listen port.
func (e *FieldError) IsPort() bool { return strings.HasSuffix(e.Key, ".port") }

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg against the struct tags and returns a *FieldError for
// the first violation.
func Validate(cfg Config) error {
	err := validatorInstance().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fe := verrs[0]
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	return &FieldError{Key: key, Rule: fe.Tag(), Param: fe.Param(), Value: fe.Value()}
}
