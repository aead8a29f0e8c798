package crdtdoc

import (
	"fmt"
	"reflect"
)

// Kind discriminates the shape a Schema describes.
type Kind int

// Schema shape kinds, per §4.1's diff algorithm ("Object", "Record",
// "Array", "Collaborative text", "Primitive") plus the union/optional
// combinators it says are resolved by first-match.
const (
	KindObject Kind = iota
	KindRecord
	KindArray
	KindText
	KindPrimitive
	KindUnion
	KindOptional
)

// Schema describes the shape of one JSON-projected field of a CRDT
// document. It is a statically-built sum type rather than a runtime
// validator library (§9 "Zod schemas as runtime validators" — replaced
// here with a compile-time-constructed Go value that still supports the
// same union/optional resolution semantics).
type Schema struct {
	Kind Kind

	// KindObject
	Fields map[string]Schema

	// KindRecord / KindArray: the schema of each value/item.
	Elem *Schema

	// KindPrimitive: the expected Go kind (reflect.String, reflect.Bool,
	// reflect.Float64, ...). Empty means "any primitive accepted".
	PrimitiveKind reflect.Kind

	// KindUnion
	Options []Schema

	// KindOptional
	Inner *Schema
}

// Object builds a fixed-shape object schema.
func Object(fields map[string]Schema) Schema {
	return Schema{Kind: KindObject, Fields: fields}
}

// Record builds a homogeneous-map schema.
func Record(value Schema) Schema {
	return Schema{Kind: KindRecord, Elem: &value}
}

// ArraySchema builds an array schema.
func ArraySchema(item Schema) Schema {
	return Schema{Kind: KindArray, Elem: &item}
}

// Text is the collaborative-text marker schema.
func Text() Schema {
	return Schema{Kind: KindText}
}

// Primitive builds a primitive schema, optionally constrained to a
// reflect.Kind (pass reflect.Invalid to accept any primitive).
func Primitive(k reflect.Kind) Schema {
	return Schema{Kind: KindPrimitive, PrimitiveKind: k}
}

// Union builds a union schema: the first option that validates wins.
func Union(options ...Schema) Schema {
	return Schema{Kind: KindUnion, Options: options}
}

// Optional wraps a schema so that a missing/nil value is also valid.
func Optional(inner Schema) Schema {
	return Schema{Kind: KindOptional, Inner: &inner}
}

// Validate reports whether value conforms to schema. On success it may
// return a "resolved" schema for Union/Optional kinds — the specific
// option that matched — so callers can recurse without re-resolving.
func Validate(schema Schema, value any) (Schema, error) {
	switch schema.Kind {
	case KindOptional:
		if value == nil {
			return schema, nil
		}

		resolved, err := Validate(*schema.Inner, value)
		if err != nil {
			return Schema{}, fmt.Errorf("optional: %w", err)
		}

		return resolved, nil

	case KindUnion:
		var lastErr error

		for _, opt := range schema.Options {
			resolved, err := Validate(opt, value)
			if err == nil {
				return resolved, nil
			}

			lastErr = err
		}

		return Schema{}, fmt.Errorf("union: no option matched: %w", lastErr)

	case KindObject:
		m, ok := value.(map[string]any)
		if !ok {
			return Schema{}, fmt.Errorf("object: expected map[string]any, got %T", value)
		}

		for key, fieldSchema := range schema.Fields {
			fv, present := m[key]
			if !present {
				if _, err := Validate(fieldSchema, nil); err != nil {
					return Schema{}, fmt.Errorf("object.%s: missing required field", key)
				}

				continue
			}

			if _, err := Validate(fieldSchema, fv); err != nil {
				return Schema{}, fmt.Errorf("object.%s: %w", key, err)
			}
		}

		return schema, nil

	case KindRecord:
		m, ok := value.(map[string]any)
		if !ok {
			return Schema{}, fmt.Errorf("record: expected map[string]any, got %T", value)
		}

		for key, v := range m {
			if _, err := Validate(*schema.Elem, v); err != nil {
				return Schema{}, fmt.Errorf("record[%s]: %w", key, err)
			}
		}

		return schema, nil

	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			return Schema{}, fmt.Errorf("array: expected []any, got %T", value)
		}

		for i, v := range arr {
			if _, err := Validate(*schema.Elem, v); err != nil {
				return Schema{}, fmt.Errorf("array[%d]: %w", i, err)
			}
		}

		return schema, nil

	case KindText:
		if _, ok := value.(string); !ok {
			return Schema{}, fmt.Errorf("text: expected string, got %T", value)
		}

		return schema, nil

	case KindPrimitive:
		if value == nil {
			return Schema{}, fmt.Errorf("primitive: unexpected nil")
		}

		if schema.PrimitiveKind == reflect.Invalid {
			return schema, nil
		}

		if reflect.TypeOf(value).Kind() != schema.PrimitiveKind {
			return Schema{}, fmt.Errorf("primitive: expected %s, got %T", schema.PrimitiveKind, value)
		}

		return schema, nil

	default:
		return Schema{}, fmt.Errorf("schema: unknown kind %v", schema.Kind)
	}
}
