// Package buildinfo contains build-time metadata and validation state separate from user configuration
package buildinfo

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// BuildInfo provides access to build-time metadata.
type BuildInfo interface {
	// Version returns the build version string
	Version() string
	// BuildDate returns the build date string
	BuildDate() string
	// SystemID returns the identifier of this instance
	SystemID() string
}

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup from linker flags and is not part of the
// configuration system.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext returns build metadata. Empty values report UnknownValue.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{
		version:   version,
		buildDate: buildDate,
		systemID:  systemID,
	}
}

// Version implements BuildInfo.Version
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate implements BuildInfo.BuildDate
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// SystemID implements BuildInfo.SystemID
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}

// ValidationResult holds configuration validation outcomes separately from
// the configuration itself.
type ValidationResult struct {
	// Warnings are adjustments made while sanitizing that don't prevent startup
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Errors are critical issues that should prevent startup
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Valid indicates if the configuration passed validation
	Valid bool `json:"valid" yaml:"valid"`
}

// NewValidationResult creates a new validation result with Valid set to true
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddWarning adds a warning to the validation result
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AddError adds an error to the validation result
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

// HasIssues returns true if there are any warnings or errors
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}
