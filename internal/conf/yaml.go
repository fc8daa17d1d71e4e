package conf

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/scanline/dsnscan/internal/errors"
)

// Marshal renders settings as YAML with the key names the loader accepts
func Marshal(s *Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "marshal").
			Build()
	}
	if err := enc.Close(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "marshal").
			Build()
	}
	return buf.Bytes(), nil
}
