package config

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Field represents metadata about a config field extracted from struct tags
type Field struct {
	Key      string   // e.g., "display.page_size"
	Default  string   // default value as string
	Desc     string   // description for help text
	Min      int      // minimum value for int fields (0 = no limit)
	Max      int      // maximum value for int fields (0 = no limit)
	Enum     []string // allowed values for string fields
	Type     string   // "string", "int" or "bool"
	Category string   // e.g., "backend", "display"
	ReadOnly bool     // if true, cannot be set via CLI
}

var (
	fieldsOnce  sync.Once
	fieldsCache []Field
)

// Fields returns every settable config field, sorted by key.
func Fields() []Field {
	fieldsOnce.Do(func() {
		cfg := &Config{}
		extractFields(reflect.TypeOf(cfg).Elem(), &fieldsCache)
		sort.Slice(fieldsCache, func(i, j int) bool {
			return fieldsCache[i].Key < fieldsCache[j].Key
		})
	})
	return fieldsCache
}

// extractFields recursively extracts config fields from a struct
func extractFields(t reflect.Type, fields *[]Field) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		configKey := field.Tag.Get("config")
		if configKey == "" {
			if field.Type.Kind() == reflect.Struct && field.Tag.Get("toml") != "" {
				extractFields(field.Type, fields)
			}
			continue
		}

		cf := Field{
			Key:      configKey,
			Default:  field.Tag.Get("default"),
			Desc:     field.Tag.Get("desc"),
			Category: strings.Split(configKey, ".")[0],
			ReadOnly: field.Tag.Get("readonly") == "true",
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			cf.Enum = strings.Split(enum, ",")
		}
		if minStr := field.Tag.Get("min"); minStr != "" {
			cf.Min, _ = strconv.Atoi(minStr)
		}
		if maxStr := field.Tag.Get("max"); maxStr != "" {
			cf.Max, _ = strconv.Atoi(maxStr)
		}

		switch field.Type.Kind() {
		case reflect.Int:
			cf.Type = "int"
		case reflect.Bool:
			cf.Type = "bool"
		case reflect.String:
			cf.Type = "string"
		}

		*fields = append(*fields, cf)
	}
}

// findField finds a config field by key
func findField(key string) *Field {
	key = normalizeKey(key)
	for _, f := range Fields() {
		if f.Key == key {
			return &f
		}
	}
	return nil
}

// normalizeKey handles key aliases
func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	aliases := map[string]string{
		"backend.timeout": "backend.timeout_seconds",
		"display.limit":   "display.page_size",
		"user":            "user.id",
		"project":         "project.default",
	}
	if normalized, ok := aliases[key]; ok {
		return normalized
	}
	return key
}

// fieldByKey locates the struct field tagged with key inside the section
// whose toml tag matches the key's prefix.
func fieldByKey(cfg *Config, key string) (reflect.Value, bool) {
	section, _, ok := strings.Cut(key, ".")
	if !ok {
		return reflect.Value{}, false
	}

	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	var nested reflect.Value
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == section {
			nested = v.Field(i)
			break
		}
	}
	if !nested.IsValid() || nested.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	nt := nested.Type()
	for i := 0; i < nt.NumField(); i++ {
		if nt.Field(i).Tag.Get("config") == key {
			return nested.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// getFieldValue gets a field value from the config using reflection
func getFieldValue(cfg *Config, key string) (string, bool) {
	fv, ok := fieldByKey(cfg, normalizeKey(key))
	if !ok {
		return "", false
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String(), true
	case reflect.Int:
		return strconv.FormatInt(fv.Int(), 10), true
	case reflect.Bool:
		return strconv.FormatBool(fv.Bool()), true
	}
	return "", false
}

// setFieldValue sets a field value on the config using reflection
func setFieldValue(cfg *Config, key, value string) error {
	key = normalizeKey(key)

	field := findField(key)
	if field == nil {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if field.ReadOnly {
		return fmt.Errorf("config key %s is read-only", key)
	}

	fv, ok := fieldByKey(cfg, key)
	if !ok {
		return fmt.Errorf("field not found: %s", key)
	}

	switch fv.Kind() {
	case reflect.String:
		if len(field.Enum) > 0 && !slices.Contains(field.Enum, value) {
			return fmt.Errorf("invalid value %q for %s (expected one of: %s)", value, key, strings.Join(field.Enum, ", "))
		}
		fv.SetString(value)

	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		if field.Min != 0 && intVal < field.Min {
			return fmt.Errorf("value %d is below minimum %d", intVal, field.Min)
		}
		if field.Max != 0 && intVal > field.Max {
			return fmt.Errorf("value %d exceeds maximum %d", intVal, field.Max)
		}
		fv.SetInt(int64(intVal))

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		fv.SetBool(b)

	default:
		return fmt.Errorf("unsupported config type for %s", key)
	}
	return nil
}

// ListKeys returns all settable config keys
func ListKeys() []string {
	keys := make([]string, 0, len(Fields()))
	for _, f := range Fields() {
		if !f.ReadOnly {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// HelpText generates help text for the config options, grouped by section
func HelpText() string {
	var sb strings.Builder

	byCategory := make(map[string][]Field)
	for _, f := range Fields() {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	categories := []struct {
		key   string
		title string
	}{
		{"backend", "Backend"},
		{"display", "Display"},
		{"user", "User"},
		{"project", "Project"},
	}

	for _, cat := range categories {
		fields := byCategory[cat.key]
		if len(fields) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "  %s:\n", cat.title)
		for _, f := range fields {
			defaultStr := ""
			if f.Default != "" {
				defaultStr = fmt.Sprintf(" (default: %s)", f.Default)
			}
			fmt.Fprintf(&sb, "    %-28s %s%s\n", f.Key, f.Desc, defaultStr)
		}
		sb.WriteString("\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
