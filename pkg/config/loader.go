// Package config loads tagged structs from YAML files and environment variables.
//
// Fields are described with three struct tags:
//
//	env:"NAME"        environment variable that overrides the field
//	default:"value"   applied when the field is still zero after loading
//	required:"true"   fails loading when the field is zero and has no default
//
// Nested structs are walked recursively.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator is implemented by config structs with cross-field rules.
// Validate is called once loading has finished.
type Validator interface {
	Validate() error
}

// assign parses raw into field according to its kind.
func assign(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to int: %w", raw, err)
		}
		field.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %q to float: %w", raw, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to bool: %w", raw, err)
		}
		field.SetBool(v)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// fieldKey identifies a field across nested structs.
func fieldKey(owner reflect.Type, f reflect.StructField) string {
	return owner.Name() + "." + f.Name
}

// applyEnv overlays environment variables and records which fields they set.
func applyEnv(val reflect.Value, typ reflect.Type, seen map[string]bool) error {
	for i := 0; i < val.NumField(); i++ {
		field, meta := val.Field(i), typ.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, meta.Type, seen); err != nil {
				return err
			}
			continue
		}

		name := meta.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		if err := assign(field, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
		seen[fieldKey(typ, meta)] = true
	}
	return nil
}

// applyDefaults fills zero fields from default tags and reports missing required ones.
func applyDefaults(val reflect.Value, typ reflect.Type, seen map[string]bool) error {
	var result error
	for i := 0; i < val.NumField(); i++ {
		field, meta := val.Field(i), typ.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyDefaults(field, meta.Type, seen); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		def, hasDefault := meta.Tag.Lookup("default")
		hasDefault = hasDefault && def != ""
		required := strings.EqualFold(meta.Tag.Get("required"), "true") || meta.Tag.Get("required") == "1"

		if !field.IsZero() || seen[fieldKey(typ, meta)] {
			continue
		}
		if hasDefault {
			if err := assign(field, def); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", meta.Name, err))
			}
			continue
		}
		if required {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				meta.Tag.Get("env"), meta.Tag.Get("yaml")))
		}
	}
	return result
}

func validate(dest any) error {
	if v, ok := dest.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// GetConfigFromEnvVars fills dest from environment variables and tag defaults.
// On a missing required field dest is reset to its zero value.
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()
	seen := make(map[string]bool)

	if err := applyEnv(val, val.Type(), seen); err != nil {
		return err
	}
	if err := applyDefaults(val, val.Type(), seen); err != nil {
		var zero T
		*dest = zero
		return err
	}
	return validate(*dest)
}

// GetConfig reads the YAML file at path into dest and then overlays environment variables.
// An empty path means environment only. With allowFileErrors an unreadable or
// malformed file falls back to environment only.
func GetConfig[T any](dest *T, path string, allowFileErrors bool) error {
	if path == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		err = yaml.Unmarshal(data, dest)
		if err != nil {
			err = fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	} else {
		err = fmt.Errorf("failed to read file: %w", err)
	}
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return err
	}

	return GetConfigFromEnvVars(dest)
}
