// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// FlagBinder is implemented by types that bind their own flags manually.
// When a struct field's type implements FlagBinder, [BindFlags] calls
// AddFlags instead of reflecting struct tags. This allows shared option
// types like [ConfigOptions] to participate in the params system.
type FlagBinder interface {
	AddFlags(flagSet *pflag.FlagSet)
}

// FlagsFromParams creates a [pflag.FlagSet] with flags bound to the tagged
// fields of params. params must be a pointer to a struct. Panics on
// invalid input (programming error, not runtime data).
//
// This is the convenience wrapper for the common pattern:
//
//	var params myParams
//	command := &cli.Command{
//	    Flags: func() *pflag.FlagSet {
//	        return cli.FlagsFromParams("mycommand", &params)
//	    },
//	    Run: func(ctx context.Context, args []string) error {
//	        // params fields are populated after flag parsing
//	    },
//	}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers pflag entries for each tagged field in params.
// params must be a pointer to a struct.
//
// # Struct tags
//
// Three tags control flag binding:
//
//   - flag:"name" or flag:"name,n": the long flag name and optional single-
//     character shorthand. Fields without a flag tag are skipped.
//   - desc:"help text": the flag's help description.
//   - default:"value": the default value, parsed according to the field's
//     Go type. If omitted, the type's zero value is used.
//
// # Supported field types
//
// string, bool, int, int64, [time.Duration], []string,
// [recordapi.PermissionSet] (comma-separated flag names) and
// [recordapi.ConflictResolutionStrategy].
//
// # Struct composition
//
// Embedded struct fields are handled in two ways:
//
//   - If the field's type (via pointer) implements [FlagBinder], AddFlags
//     is called. This supports types like [ConfigOptions] that manage
//     their own flags.
//   - Otherwise, the embedded struct's fields are bound recursively.
//
// Named (non-embedded) struct fields that implement [FlagBinder] are also
// bound via AddFlags.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Ptr || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStructFields(value.Elem(), flagSet)
}

// bindStructFields iterates over struct fields and binds them to flagSet.
func bindStructFields(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()

	for i := range structType.NumField() {
		field := structType.Field(i)
		fieldValue := structValue.Field(i)

		// Struct fields (embedded or named) that implement FlagBinder
		// are bound via their own AddFlags method. The field must be
		// exported for reflect to call Interface() on it.
		if field.Type.Kind() == reflect.Struct && field.IsExported() && fieldValue.CanAddr() {
			if binder, ok := fieldValue.Addr().Interface().(FlagBinder); ok {
				binder.AddFlags(flagSet)
				continue
			}
		}

		// Embedded structs without FlagBinder: recurse into their fields.
		// This handles both exported and unexported embedded types.
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStructFields(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		// Skip fields without a flag tag.
		flagTag := field.Tag.Get("flag")
		if flagTag == "" {
			continue
		}

		name, shorthand := parseFlagTag(flagTag)
		description := field.Tag.Get("desc")
		defaultString := field.Tag.Get("default")

		if !fieldValue.CanAddr() {
			return fmt.Errorf("field %s: not addressable", field.Name)
		}

		if err := bindField(fieldValue, flagSet, name, shorthand, description, defaultString); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	return nil
}

// parseFlagTag splits "name" into ("name", "") and "name,n" into ("name", "n").
func parseFlagTag(tag string) (string, string) {
	name, shorthand, _ := strings.Cut(tag, ",")
	return name, shorthand
}

// bindField creates a pflag binding for a single struct field.
func bindField(fieldValue reflect.Value, flagSet *pflag.FlagSet, name, shorthand, description, defaultString string) error {
	pointer := fieldValue.Addr().Interface()

	var err error
	switch target := pointer.(type) {
	case *string:
		flagSet.StringVarP(target, name, shorthand, defaultString, description)

	case *bool:
		var value bool
		if value, err = parseDefault(defaultString, strconv.ParseBool); err == nil {
			flagSet.BoolVarP(target, name, shorthand, value, description)
		}

	case *int:
		var value int
		if value, err = parseDefault(defaultString, strconv.Atoi); err == nil {
			flagSet.IntVarP(target, name, shorthand, value, description)
		}

	case *int64:
		var value int64
		parse := func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
		if value, err = parseDefault(defaultString, parse); err == nil {
			flagSet.Int64VarP(target, name, shorthand, value, description)
		}

	case *time.Duration:
		var value time.Duration
		if value, err = parseDefault(defaultString, time.ParseDuration); err == nil {
			flagSet.DurationVarP(target, name, shorthand, value, description)
		}

	case *[]string:
		var value []string
		if defaultString != "" {
			value = strings.Split(defaultString, ",")
		}
		flagSet.StringSliceVarP(target, name, shorthand, value, description)

	case *recordapi.PermissionSet:
		value := &permissionSetValue{target: target}
		if defaultString != "" {
			err = value.Set(defaultString)
			value.replaced = false
		}
		flagSet.VarP(value, name, shorthand, description)

	case *recordapi.ConflictResolutionStrategy:
		value := (*conflictValue)(target)
		if defaultString != "" {
			err = value.Set(defaultString)
		}
		flagSet.VarP(value, name, shorthand, description)

	default:
		return fmt.Errorf("unsupported type %s for flag --%s", fieldValue.Type(), name)
	}

	if err != nil {
		return fmt.Errorf("default for --%s: %w", name, err)
	}
	return nil
}

// parseDefault parses a default tag value. An empty tag is the zero
// value.
func parseDefault[T any](s string, parse func(string) (T, error)) (T, error) {
	if s == "" {
		var zero T
		return zero, nil
	}
	return parse(s)
}

// permissionSetValue binds a [recordapi.PermissionSet] to a flag that
// takes comma-separated flag names in any case ("read,schema"). The
// first occurrence on the command line replaces the default; later
// occurrences add to it. An empty value yields the empty set.
type permissionSetValue struct {
	target   *recordapi.PermissionSet
	replaced bool
}

func (v *permissionSetValue) String() string {
	if v.target == nil || len(*v.target) == 0 {
		return ""
	}
	return v.target.String()
}

func (v *permissionSetValue) Set(value string) error {
	var set recordapi.PermissionSet
	if v.replaced {
		set = *v.target
	}
	for _, name := range strings.Split(value, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		flag, err := recordapi.ParsePermissionFlag(name)
		if err != nil {
			return err
		}
		set = set.With(flag)
	}
	*v.target = set
	v.replaced = true
	return nil
}

func (v *permissionSetValue) Type() string { return "permissions" }

// conflictValue binds a [recordapi.ConflictResolutionStrategy].
type conflictValue recordapi.ConflictResolutionStrategy

func (v *conflictValue) String() string { return string(*v) }

func (v *conflictValue) Set(value string) error {
	strategy, err := recordapi.ParseConflictResolutionStrategy(value)
	if err != nil {
		return err
	}
	*v = conflictValue(strategy)
	return nil
}

func (v *conflictValue) Type() string { return "strategy" }
