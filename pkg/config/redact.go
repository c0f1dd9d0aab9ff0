package config

import (
	"fmt"
	"reflect"
	"strings"
)

const redactedValue = "***"

// String returns the full configuration as an indented listing.
func (c *Config) String() string {
	var sb strings.Builder
	writeFields(&sb, reflect.ValueOf(c).Elem(), reflect.Value{}, "")
	return sb.String()
}

// Redacted returns the configuration with every value that came from the
// secrets file masked. Pass the secrets Config returned by LoadWithSecrets.
func (c *Config) Redacted(secrets *Config) string {
	if secrets == nil {
		return c.String()
	}
	var sb strings.Builder
	writeFields(&sb, reflect.ValueOf(c).Elem(), reflect.ValueOf(secrets).Elem(), "")
	return sb.String()
}

func writeFields(sb *strings.Builder, v, mask reflect.Value, indent string) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		if !value.CanInterface() {
			continue
		}

		name := strings.ToLower(field.Name)
		if tag := field.Tag.Get("mapstructure"); tag != "" && tag != "-" {
			name = tag
		}
		var fieldMask reflect.Value
		if mask.IsValid() {
			fieldMask = mask.Field(i)
		}

		if value.Kind() == reflect.Struct {
			fmt.Fprintf(sb, "%s%s:\n", indent, name)
			writeFields(sb, value, fieldMask, indent+"  ")
			continue
		}

		var display interface{} = value.Interface()
		if fieldMask.IsValid() && !fieldMask.IsZero() {
			display = redactedValue
		}
		fmt.Fprintf(sb, "%s%s: %v\n", indent, name, display)
	}
}
