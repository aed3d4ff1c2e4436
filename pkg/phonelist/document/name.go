package document

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	MaxNameLength = 100

	pathPrefix = "data/"
	pathSuffix = ".json"
)

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateName checks that a document name is safe to embed into a storage path
func ValidateName(name string) error {
	if len(name) == 0 {
		return errors.Wrap(ErrInvalidName, "name is required")
	}

	if len(name) > MaxNameLength {
		return errors.Wrapf(ErrInvalidName, "name exceeds %d characters", MaxNameLength)
	}

	if !nameRegex.MatchString(name) {
		return errors.Wrap(ErrInvalidName, "name may only contain letters, digits, '.', '_' and '-'")
	}

	if strings.HasPrefix(name, ".") {
		return errors.Wrap(ErrInvalidName, "name cannot start with '.'")
	}

	return nil
}

// Path maps a document name to its location within the backing store
func Path(name string) string {
	return pathPrefix + name + pathSuffix
}
