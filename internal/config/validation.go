package config

import (
	"fmt"
	"regexp"
	"strings"

	"insightmcp/pkg/redact"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ReservedToolNames are served by the auth tools and cannot be declared by a domain.
var ReservedToolNames = []string{"start_login", "check_login_status", "auth_status", "logout"}

// DatasetOverrideArg is added to every domain tool by the server.
const DatasetOverrideArg = "_datasetId"

var (
	toolNamePattern   = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	domainNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
	argNamePattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)
	validLogLevels    = []string{"debug", "info", "warn", "error"}
	validArgTypes     = []string{ArgTypeString, ArgTypeNumber, ArgTypeBoolean}
)

// Validate checks the whole configuration and returns every problem found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	requireString(&errs, "identity.tenantId", c.Identity.TenantID)
	requireString(&errs, "identity.clientId", c.Identity.ClientID)
	if !strings.HasPrefix(c.Identity.Authority, "https://") && !strings.HasPrefix(c.Identity.Authority, "http://") {
		errs.Add("identity.authority", "must be an http(s) URL", c.Identity.Authority)
	}
	validateTimeout(&errs, "identity.codeTimeout", c.Identity.CodeTimeout.Seconds())
	validateTimeout(&errs, "queryApi.timeout", c.QueryAPI.Timeout.Seconds())

	for field, scopes := range map[string][]string{
		"scopes.primary":      c.Scopes.Primary,
		"scopes.profile":      c.Scopes.Profile,
		"scopes.delegatedApi": c.Scopes.DelegatedAPI,
	} {
		if len(scopes) == 0 {
			errs.Add(field, "must list at least one scope")
		}
		for _, s := range scopes {
			if strings.TrimSpace(s) == "" {
				errs.Add(field, "contains an empty scope")
			}
		}
	}

	if !oneOf(c.Logging.Level, validLogLevels) {
		errs.Add("logging.level", fmt.Sprintf("must be one of: %s", strings.Join(validLogLevels, ", ")), c.Logging.Level)
	}

	c.validateDomains(&errs)
	return errs
}

func (c *Config) validateDomains(errs *ValidationErrors) {
	if len(c.Domains) == 0 {
		errs.Add("domains", "at least one domain binding is required")
		return
	}

	domainNames := make(map[string]bool)
	datasetOwners := make(map[string]string)
	toolOwners := make(map[string]string)

	for i, d := range c.Domains {
		prefix := fmt.Sprintf("domains[%d]", i)
		if !domainNamePattern.MatchString(d.Name) {
			errs.Add(prefix+".name", "must be lowercase letters, digits, '-' or '_'", d.Name)
		} else {
			prefix = fmt.Sprintf("domains[%s]", d.Name)
		}
		if domainNames[d.Name] {
			errs.Add(prefix+".name", "is declared more than once", d.Name)
		}
		domainNames[d.Name] = true

		if len(d.Datasets) == 0 {
			errs.Add(prefix+".datasets", "at least one dataset is required")
		}
		for j, ds := range d.Datasets {
			field := fmt.Sprintf("%s.datasets[%d]", prefix, j)
			requireString(errs, field+".id", ds.ID)
			requireString(errs, field+".workspaceId", ds.WorkspaceID)
			if ds.ID == "" {
				continue
			}
			if owner, taken := datasetOwners[ds.ID]; taken && owner != d.Name {
				errs.Add(field+".id", fmt.Sprintf("dataset %s is already bound to domain %q", redact.ID(ds.ID), owner))
			}
			datasetOwners[ds.ID] = d.Name
		}

		for j, table := range d.RequiredTables {
			if strings.TrimSpace(table) == "" {
				errs.Add(fmt.Sprintf("%s.requiredTables[%d]", prefix, j), "must not be empty")
			}
		}

		for j, tool := range d.Tools {
			validateTool(errs, fmt.Sprintf("%s.tools[%d]", prefix, j), tool, d.Name, toolOwners)
		}
	}
}

func validateTool(errs *ValidationErrors, field string, tool ToolConfig, domainName string, owners map[string]string) {
	if !toolNamePattern.MatchString(tool.Name) {
		errs.Add(field+".name", "must be lowercase snake_case", tool.Name)
	}
	if oneOf(tool.Name, ReservedToolNames) {
		errs.Add(field+".name", "is reserved for authentication tools", tool.Name)
	}
	if owner, taken := owners[tool.Name]; taken {
		errs.Add(field+".name", fmt.Sprintf("is already declared by domain %q", owner), tool.Name)
	}
	owners[tool.Name] = domainName

	requireString(errs, field+".query", tool.Query)

	args := make(map[string]bool)
	for k, arg := range tool.Arguments {
		argField := fmt.Sprintf("%s.arguments[%d]", field, k)
		if !argNamePattern.MatchString(arg.Name) {
			errs.Add(argField+".name", "must start with a letter and contain only letters, digits or '_'", arg.Name)
		}
		if arg.Name == DatasetOverrideArg {
			errs.Add(argField+".name", "is reserved", arg.Name)
		}
		if args[arg.Name] {
			errs.Add(argField+".name", "is declared more than once", arg.Name)
		}
		args[arg.Name] = true
		if !oneOf(arg.Type, validArgTypes) {
			errs.Add(argField+".type", fmt.Sprintf("must be one of: %s", strings.Join(validArgTypes, ", ")), arg.Type)
		}
	}
}

func requireString(errs *ValidationErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.Add(field, "is required")
	}
}

func validateTimeout(errs *ValidationErrors, field string, seconds float64) {
	if seconds <= 0 || seconds > timeoutCeiling.Seconds() {
		errs.Add(field, fmt.Sprintf("must be between 0s and %s", timeoutCeiling), seconds)
	}
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
