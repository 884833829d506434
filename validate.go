package aidefense

import (
	"net/url"
	"strings"
)

// validMethods is the set of HTTP methods accepted for inspection. Anything
// else is rejected before a request is built.
var validMethods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"PATCH":   {},
	"HEAD":    {},
	"OPTIONS": {},
}

// validateMethod rejects methods outside the standard set. Matching is case
// insensitive; the canonical upper-case form is returned.
func validateMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if _, ok := validMethods[m]; !ok {
		return "", validationErr("method", "%q is not a valid HTTP method", method)
	}
	return m, nil
}

// validateURL rejects anything that does not parse as an absolute http(s) URL
// with a host. Relative paths, bare hosts, and unsupported schemes all fail.
func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return validationErr(field, "URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return validationErr(field, "%q is not a valid URL: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validationErr(field, "%q must use the http or https scheme", raw)
	}
	if u.Host == "" {
		return validationErr(field, "%q has no host", raw)
	}
	return nil
}

// validateMessages rejects empty conversations and messages with unknown roles
// or empty content.
func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return validationErr("messages", "at least one message is required")
	}
	for i, msg := range messages {
		if !msg.Role.valid() {
			return validationErr("messages", "message %d has unknown role %q", i, msg.Role)
		}
		if msg.Content == "" {
			return validationErr("messages", "message %d has empty content", i)
		}
	}
	return nil
}
