package netutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHttpUrl(t *testing.T) {
	for _, valid := range []string{
		"https://api.github.com",
		"http://localhost:8080",
		"http://127.0.0.1:34567",
		"https://[::1]:443/api",
	} {
		assert.NoError(t, ValidateHttpUrl(valid, false), valid)
	}

	for _, invalid := range []string{
		"",
		"api.github.com",
		"ftp://api.github.com",
		"https://",
		"http://%zz",
		"https://" + strings.Repeat("a", 300) + ".com",
	} {
		assert.Error(t, ValidateHttpUrl(invalid, false), invalid)
	}

	assert.NoError(t, ValidateHttpUrl("https://api.github.com", true))
	assert.Error(t, ValidateHttpUrl("http://api.github.com", true))
}

func TestValidateDomainName(t *testing.T) {
	assert.NoError(t, ValidateDomainName("api.github.com"))
	assert.Error(t, ValidateDomainName(""))
	assert.Error(t, ValidateDomainName(strings.Repeat("a", 254)))
}
