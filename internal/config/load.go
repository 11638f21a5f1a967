package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/metron-labs/metron/internal/secrets"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
)

// SupportedSchemaVersionConstraint defines the SemVer constraint that loaded
// configurations must satisfy. A v1 runtime only accepts v1 configurations.
const SupportedSchemaVersionConstraint = "v1"

// Load reads the specified YAML bytes, validates them against the embedded
// JSON schema, unmarshals into a Config struct, checks schema version
// compatibility, expands secret references, and performs logical validation.
// The expander may be nil, in which case ${env:NAME} references are left
// untouched.
func Load(ctx context.Context, configYAML []byte, filePathHint string, expander *secrets.Expander) (*Config, error) {
	if len(configYAML) == 0 {
		return nil, metronerrors.NewConfigError("configuration content cannot be empty", nil)
	}

	// Step 1: Validate against the JSON Schema for basic structure and types.
	if err := ValidateWithSchema(configYAML); err != nil {
		return nil, metronerrors.NewConfigError(fmt.Sprintf("configuration '%s' failed schema validation", filePathHint), err)
	}

	// Step 2: Unmarshal into a Go struct with strict decoding to catch
	// unknown fields.
	var cfg Config
	if err := yamlUnmarshalStrict(configYAML, &cfg); err != nil {
		return nil, metronerrors.NewConfigError(fmt.Sprintf("failed to parse configuration YAML '%s'", filePathHint), err)
	}
	cfg.FilePath = filePathHint

	// Step 3: Check schema version compatibility.
	if cfg.SchemaVersion == "" {
		return nil, metronerrors.NewValidationError(fmt.Sprintf("configuration '%s' is missing required 'schemaVersion' field", filePathHint), nil)
	}
	cfgSemVer := cfg.SchemaVersion
	if !strings.HasPrefix(cfgSemVer, "v") {
		cfgSemVer = "v" + cfgSemVer
	}
	if !semver.IsValid(cfgSemVer) {
		return nil, metronerrors.NewValidationError(fmt.Sprintf("configuration '%s' has invalid 'schemaVersion' format: '%s'", filePathHint, cfg.SchemaVersion), nil)
	}
	if semver.Major(cfgSemVer) != SupportedSchemaVersionConstraint {
		return nil, metronerrors.NewValidationError(
			fmt.Sprintf("configuration '%s' schemaVersion '%s' is not compatible with runtime requirement '%s'",
				filePathHint, cfg.SchemaVersion, SupportedSchemaVersionConstraint),
			nil,
		)
	}

	// Step 4: Expand ${env:NAME} secret references so validation sees final
	// values and the tracker learns them for redaction.
	if expander != nil {
		if err := expandSecrets(ctx, &cfg, expander); err != nil {
			return nil, err
		}
	}

	// Step 5: Perform detailed logical validation on the Go struct.
	validationErrs := ValidateConfigStructure(&cfg)
	if len(validationErrs) > 0 {
		var errorMessages []string
		for _, vErr := range validationErrs {
			errorMessages = append(errorMessages, vErr.Error())
		}
		combinedMessage := fmt.Sprintf("configuration '%s' has %d validation error(s):\n- %s",
			filePathHint, len(errorMessages), strings.Join(errorMessages, "\n- "))
		return nil, metronerrors.NewValidationError(combinedMessage, validationErrs[0])
	}

	return &cfg, nil
}

// LoadFromFile is a convenience function to read a configuration from disk.
func LoadFromFile(ctx context.Context, filePath string, expander *secrets.Expander) (*Config, error) {
	if filePath == "" {
		return nil, metronerrors.NewConfigError("configuration file path cannot be empty", nil)
	}
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, metronerrors.NewConfigError(fmt.Sprintf("failed to get absolute path for '%s'", filePath), err)
	}
	yamlFile, err := os.ReadFile(absPath)
	if err != nil {
		return nil, metronerrors.NewConfigError(fmt.Sprintf("failed to read configuration file '%s'", absPath), err)
	}
	return Load(ctx, yamlFile, absPath, expander)
}

// expandSecrets resolves ${env:NAME} references in every config field that
// may carry one. Keys are never expanded, only values.
func expandSecrets(ctx context.Context, cfg *Config, exp *secrets.Expander) error {
	var err error
	if cfg.Service != nil {
		if cfg.Service.Name, err = exp.Expand(ctx, cfg.Service.Name); err != nil {
			return err
		}
		if cfg.Service.Version, err = exp.Expand(ctx, cfg.Service.Version); err != nil {
			return err
		}
	}
	if err = exp.ExpandMap(ctx, cfg.Attributes); err != nil {
		return err
	}
	if cfg.OTLP != nil {
		if cfg.OTLP.Endpoint, err = exp.Expand(ctx, cfg.OTLP.Endpoint); err != nil {
			return err
		}
		if err = exp.ExpandMap(ctx, cfg.OTLP.Headers); err != nil {
			return err
		}
	}
	if cfg.Textfile != nil {
		if cfg.Textfile.Directory, err = exp.Expand(ctx, cfg.Textfile.Directory); err != nil {
			return err
		}
		for i := range cfg.Textfile.Collectors {
			if err = exp.ExpandMap(ctx, cfg.Textfile.Collectors[i].Params); err != nil {
				return err
			}
		}
	}
	return nil
}

// yamlUnmarshalStrict provides stricter YAML unmarshalling by disallowing
// unknown fields. This helps users catch typos early.
func yamlUnmarshalStrict(in []byte, out interface{}) error {
	decoder := yaml.NewDecoder(strings.NewReader(string(in)))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("YAML parsing error: %w", err)
	}
	return nil
}
