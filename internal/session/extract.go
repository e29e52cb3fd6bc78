package session

import (
	"regexp"

	"lectern/internal/services"
)

// The identity server renders the execution token as a hidden form input on
// the login page. The exact markup is stable enough to match literally.
var executionPattern = regexp.MustCompile(`<input type="hidden" name="execution" value="(.*?)" />`)

// The classroom service stores its session as a PHP-serialized array inside a
// percent-encoded cookie. The bearer token is the string value following the
// "_token" key.
var bearerPattern = regexp.MustCompile(`\{i:\d+;s:\d+:"_token";i:\d+;s:\d+:"(.+?)";\}`)

// ExtractExecutionToken pulls the CAS execution token out of a login page.
func ExtractExecutionToken(page string) (string, error) {
	match := executionPattern.FindStringSubmatch(page)
	if match == nil {
		return "", services.Wrap(services.ErrAuth, "login", "execution token not found", nil)
	}
	return match[1], nil
}

// ExtractBearerToken pulls the classroom bearer token out of an already
// percent-decoded cookie value.
func ExtractBearerToken(decoded string) (string, bool) {
	match := bearerPattern.FindStringSubmatch(decoded)
	if match == nil {
		return "", false
	}
	return match[1], true
}
