package credentials

import (
	"strings"

	"github.com/bubblelabai/bubblelab/pkg/domain"
)

const redactedPlaceholder = "[REDACTED]"

// Sanitizer strips configured secret values from any string that crosses the
// execution boundary: error messages, streamed event messages, result
// payload errors.
type Sanitizer struct {
	secrets []string
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// NewExecutionSanitizer collects every secret in play for one execution:
// all of the user's credentials (not only the injected ones) and all system
// credentials.
func NewExecutionSanitizer(userCredentials []domain.UserCredential, systemCredentials domain.SystemCredentials) *Sanitizer {
	s := NewSanitizer()

	for _, cred := range userCredentials {
		s.Add(cred.Secret)
	}

	for _, secret := range systemCredentials {
		s.Add(secret)
	}

	return s
}

func (s *Sanitizer) Add(secret string) {
	// Very short values would redact innocent substrings.
	if len(secret) < 4 {
		return
	}

	s.secrets = append(s.secrets, secret)
}

func (s *Sanitizer) Sanitize(message string) string {
	for _, secret := range s.secrets {
		message = strings.ReplaceAll(message, secret, redactedPlaceholder)
	}

	return message
}

func (s *Sanitizer) SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	return s.Sanitize(err.Error())
}
