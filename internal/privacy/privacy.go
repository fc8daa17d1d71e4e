// Package privacy removes credentials from URLs and messages before they reach
// logs, API responses or error reports, and generates system identifiers.
package privacy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// redactedSecret replaces passwords in URLs
const redactedSecret = "xxxxx"

// urlPattern finds broker and HTTP URLs in free text
var urlPattern = regexp.MustCompile(`\b(?:tcp|ssl|tls|mqtt|mqtts|ws|wss|https?)://\S+`)

// ScrubMessage replaces every URL in message with its redacted form
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, func(match string) string {
		trimmed := strings.TrimRight(match, `.,;:)"'`)
		return RedactURL(trimmed) + match[len(trimmed):]
	})
}

// RedactURL keeps the scheme, user name, host and port of rawURL for debugging
// and drops the password, path and query. Strings that are not URLs with a
// host are returned unchanged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.Username())
		if _, hasPassword := u.User.Password(); hasPassword {
			b.WriteString(":" + redactedSecret)
		}
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	return b.String()
}

// GenerateSystemID creates a random identifier of the form XXXX-XXXX-XXXX
func GenerateSystemID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	id := hex.EncodeToString(buf)
	return strings.ToUpper(fmt.Sprintf("%s-%s-%s", id[0:4], id[4:8], id[8:12])), nil
}

// IsValidSystemID checks if id has the XXXX-XXXX-XXXX hex format
func IsValidSystemID(id string) bool {
	if len(id) != 14 || id[4] != '-' || id[9] != '-' {
		return false
	}
	for i, r := range id {
		if i == 4 || i == 9 {
			continue
		}
		if !isHexChar(r) {
			return false
		}
	}
	return true
}

func isHexChar(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') || (r >= 'a' && r <= 'f')
}
