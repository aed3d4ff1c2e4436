package netutil

import (
	"net"
	"net/url"

	"github.com/pkg/errors"
)

// ValidateHttpUrl validates a URL for an HTTP scheme. The host may be a domain
// name or an IP address, with an optional port.
func ValidateHttpUrl(value string, requireSecureConnection bool) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return errors.Wrap(err, "url is malformed")
	}

	if requireSecureConnection && parsed.Scheme != "https" {
		return errors.New("url scheme must be https")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}

	host := parsed.Hostname()
	if len(host) == 0 {
		return errors.New("host component missing")
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if err := ValidateDomainName(host); err != nil {
		return errors.Wrap(err, "host is not a valid domain name")
	}
	return nil
}
