package netutil

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

const (
	maxDomainNameSize  = 253
	maxDomainLabelSize = 63
)

// ValidateDomainName validates the string value as a domain name. A single
// trailing dot is permitted.
func ValidateDomainName(value string) error {
	value = strings.TrimSuffix(value, ".")

	if len(value) == 0 {
		return errors.New("domain name is empty")
	}
	if len(value) > maxDomainNameSize {
		return errors.New("domain name length exceeds limit")
	}

	ascii, err := idna.Registration.ToASCII(value)
	if err != nil {
		return errors.Wrap(err, "domain name is invalid")
	}

	for _, label := range strings.Split(ascii, ".") {
		if len(label) == 0 || len(label) > maxDomainLabelSize {
			return errors.Errorf("domain name label %q is invalid", label)
		}
	}
	return nil
}
