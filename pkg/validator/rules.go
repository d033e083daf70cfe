package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Required validates that a string is not empty after trimming whitespace.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{
			Field:   field,
			Message: "is required",
		},
	}
}

// MaxLen validates that a string does not exceed max characters (runes, not bytes).
func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len([]rune(value)) <= max },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d characters", max),
		},
	}
}

// MinLen validates that a string has at least min characters.
func MinLen(field, value string, min int) Rule {
	return Rule{
		Check: func() bool { return len([]rune(value)) >= min },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters", min),
		},
	}
}

// OneOf validates that a value is one of the allowed options.
func OneOf[T comparable](field string, value T, options []T) Rule {
	return Rule{
		Check: func() bool {
			for _, opt := range options {
				if value == opt {
					return true
				}
			}
			return false
		},
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be one of: %v", options),
		},
	}
}

// NonEmptySlice validates that a slice has at least one element.
func NonEmptySlice[T any](field string, value []T) Rule {
	return Rule{
		Check: func() bool { return len(value) > 0 },
		Error: ValidationError{
			Field:   field,
			Message: "must not be empty",
		},
	}
}

// Positive validates that a numeric value is greater than zero.
func Positive[T Numeric](field string, value T) Rule {
	return Rule{
		Check: func() bool { return value > 0 },
		Error: ValidationError{
			Field:   field,
			Message: "must be greater than zero",
		},
	}
}

// NonNegative validates that a numeric value is zero or greater.
func NonNegative[T Numeric](field string, value T) Rule {
	return Rule{
		Check: func() bool { return value >= 0 },
		Error: ValidationError{
			Field:   field,
			Message: "must not be negative",
		},
	}
}

// ValidUUID validates that a string parses as a non-nil UUID.
func ValidUUID(field, value string) Rule {
	return Rule{
		Check: func() bool {
			id, err := uuid.Parse(value)
			return err == nil && id != uuid.Nil
		},
		Error: ValidationError{
			Field:   field,
			Message: "must be a valid UUID",
		},
	}
}

// RequiredUUID validates that a UUID is not the nil value.
func RequiredUUID(field string, value uuid.UUID) Rule {
	return Rule{
		Check: func() bool { return value != uuid.Nil },
		Error: ValidationError{
			Field:   field,
			Message: "is required",
		},
	}
}

// FutureDate validates that a time is in the future.
func FutureDate(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool { return value.After(time.Now()) },
		Error: ValidationError{
			Field:   field,
			Message: "must be in the future",
		},
	}
}

// ValidURL validates http(s) URL shape without resolving it.
func ValidURL(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
		},
		Error: ValidationError{
			Field:   field,
			Message: "must be a valid http(s) URL",
		},
	}
}

// Numeric constrains the numeric rule helpers.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}
