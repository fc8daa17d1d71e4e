// Package secrets resolves credentials from environment references and
// mounted secret files (Docker/Kubernetes secrets).
//
// Secret values are never logged.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scanline/dsnscan/internal/errors"
	"github.com/scanline/dsnscan/internal/logger"
)

const (
	// maxSecretFileSize limits secret file reads; secrets are tokens and
	// passwords, not documents
	maxSecretFileSize = 64 * 1024

	// insecurePerms are the group/other bits that trigger a warning
	insecurePerms = 0o077
)

// ExpandString expands ${VAR} and ${VAR:-default} references in s.
//
// Examples:
//   - "literal" -> "literal"
//   - "${TOKEN}" -> value of TOKEN
//   - "${TOKEN:-guest}" -> value of TOKEN or "guest" when unset
//
// A reference without a fallback to an unset variable is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing required environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret from path, dropping trailing newlines. Files
// readable by group or other are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", errors.Newf("secret file path is empty").
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", cleanPath).
			Build()
	}
	switch {
	case !info.Mode().IsRegular():
		return "", fileError("secret path is not a regular file", cleanPath)
	case info.Size() > maxSecretFileSize:
		return "", fileError(fmt.Sprintf("secret file larger than %d bytes", maxSecretFileSize), cleanPath)
	}

	if perm := info.Mode().Perm(); perm&insecurePerms != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or other",
			logger.String("path", cleanPath),
			logger.String("perms", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", cleanPath).
			Build()
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError("secret file is empty", cleanPath)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded. Both empty resolve to "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}

func fileError(msg, path string) error {
	return errors.Newf("%s", msg).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Context("path", path).
		Build()
}
