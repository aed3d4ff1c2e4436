package phone

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// NumberLength is the exact number of digits in a normalized phone number
const NumberLength = 10

var (
	// ErrMissingValue indicates the phone number is empty after trimming
	ErrMissingValue = errors.New("phone number is required")

	// ErrInvalidLength indicates the trimmed phone number isn't exactly 10 characters
	ErrInvalidLength = errors.New("phone number must be 10 digits")

	// ErrInvalidFormat indicates the trimmed phone number contains a character
	// that isn't an ASCII digit
	ErrInvalidFormat = errors.New("phone number must contain only digits")

	// ErrEmptyBatch indicates a batch of phone numbers has no entries
	ErrEmptyBatch = errors.New("phone number batch is empty")
)

var digitsPattern = regexp.MustCompile("^[0-9]+$")

// Normalize trims surrounding whitespace and validates the result is a 10
// digit phone number.
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	if len(trimmed) == 0 {
		return "", ErrMissingValue
	}

	if utf8.RuneCountInString(trimmed) != NumberLength {
		return "", ErrInvalidLength
	}

	if !digitsPattern.MatchString(trimmed) {
		return "", ErrInvalidFormat
	}

	return trimmed, nil
}

// InvalidEntry describes a batch element that failed validation
type InvalidEntry struct {
	Index int
	Value string
	Err   error
}

// BatchError enumerates every invalid element of a batch, in input order
type BatchError struct {
	Invalid []InvalidEntry
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of the phone numbers are invalid", len(e.Invalid))
}

// Values returns the original, untrimmed values of the invalid entries
func (e *BatchError) Values() []string {
	values := make([]string, len(e.Invalid))
	for i, entry := range e.Invalid {
		values[i] = entry.Value
	}
	return values
}

// NormalizeBatch validates every element independently. If any element is
// invalid, no normalized values are returned and the error is a *BatchError
// describing all of them. An empty batch returns ErrEmptyBatch.
func NormalizeBatch(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyBatch
	}

	normalized := make([]string, 0, len(raw))
	var batchErr *BatchError
	for i, value := range raw {
		number, err := Normalize(value)
		if err != nil {
			if batchErr == nil {
				batchErr = &BatchError{}
			}
			batchErr.Invalid = append(batchErr.Invalid, InvalidEntry{
				Index: i,
				Value: value,
				Err:   err,
			})
			continue
		}
		normalized = append(normalized, number)
	}

	if batchErr != nil {
		return nil, batchErr
	}
	return normalized, nil
}
