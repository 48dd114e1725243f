package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"brewpos/internal/apperr"
	"brewpos/internal/domain"
)

var (
	reID     = regexp.MustCompile(`^[1-9][0-9]{0,17}$`)
	reAmount = regexp.MustCompile(`^[0-9]{1,9}(\.[0-9]{1,2})?$`)

	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("size", func(fl validator.FieldLevel) bool {
			_, ok := domain.ParseSize(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("method", func(fl validator.FieldLevel) bool {
			_, ok := domain.ParsePaymentMethod(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
			_, ok := Amount(fl.Field().String())
			return ok
		})
	})
	return v
}

// Struct runs the `validate` tags of a request body. Failures come back as a
// VALIDATION_ERROR listing the offending fields.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apperr.New(apperr.CodeValidation, "invalid request").WithDetails(fields)
}

// ID validates a numeric resource identifier (product, item, transaction).
func ID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !reID.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// Amount parses a non-negative money amount with at most two decimals.
func Amount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !reAmount.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}

// Limit clamps list sizes to avoid abuse.
func Limit(s string, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
