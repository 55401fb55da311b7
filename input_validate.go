package weave

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// IsValidInputValue checks value against the declared type ty, returning a
// human-readable message prefixed by the dotted path if invalid, or "" if
// value is acceptable. Object/interface/union types are not valid input
// shapes and are accepted silently — the planner is expected to have
// rejected those before a query reaches here.
func IsValidInputValue(schema *ast.Schema, ty *ast.Type, value interface{}, path string) string {
	if ty.NonNull && value == nil {
		return invalidInputValue(path, fmt.Sprintf("expected type %q", ty.String()))
	}
	return isValidInputBaseValue(schema, ty, value, path)
}

func isValidInputBaseValue(schema *ast.Schema, ty *ast.Type, value interface{}, path string) string {
	if ty.Elem != nil {
		switch v := value.(type) {
		case nil:
			return ""
		case []interface{}:
			for idx, elem := range v {
				if msg := IsValidInputValue(schema, ty.Elem, elem, fmt.Sprintf("%s.%d", path, idx)); msg != "" {
					return msg
				}
			}
			return ""
		default:
			// A bare value against a list type is implicitly coerced into a
			// single-element list.
			return IsValidInputValue(schema, ty.Elem, value, path)
		}
	}

	if value == nil {
		return ""
	}

	def, ok := schema.Types[ty.NamedType]
	if !ok {
		return ""
	}

	switch def.Kind {
	case ast.Scalar:
		if isValidScalarValue(ty.NamedType, value) {
			return ""
		}
		return invalidInputValue(path, fmt.Sprintf("expected type %q", ty.NamedType))
	case ast.Enum:
		return isValidEnumValue(def, value, path)
	case ast.InputObject:
		return isValidInputObjectValue(schema, def, value, path)
	default:
		return ""
	}
}

func isValidEnumValue(def *ast.Definition, value interface{}, path string) string {
	token, ok := value.(string)
	if !ok {
		return invalidInputValue(path, fmt.Sprintf("expected type %q", def.Name))
	}
	for _, v := range def.EnumValues {
		if v.Name == token {
			return ""
		}
	}
	return invalidInputValue(path, fmt.Sprintf("enumeration type %q does not contain the value %q", def.Name, token))
}

func isValidInputObjectValue(schema *ast.Schema, def *ast.Definition, value interface{}, path string) string {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return invalidInputValue(path, fmt.Sprintf("expected type %q", def.Name))
	}

	seen := make(map[string]bool, len(obj))
	for _, field := range def.Fields {
		fieldValue, present := obj[field.Name]
		if present {
			seen[field.Name] = true
			if msg := IsValidInputValue(schema, field.Type, fieldValue, path+"."+field.Name); msg != "" {
				return msg
			}
			continue
		}
		if field.Type.NonNull && field.DefaultValue == nil {
			return invalidInputValue(path, fmt.Sprintf("field %q of type %q is required but not provided", field.Name, def.Name))
		}
	}

	for key := range obj {
		if !seen[key] {
			return invalidInputValue(path, fmt.Sprintf("unknown field %q of type %q", key, def.Name))
		}
	}
	return ""
}

func isValidScalarValue(typeName string, value interface{}) bool {
	switch typeName {
	case "Int":
		return isIntegral(value)
	case "Float":
		return isNumeric(value)
	case "String":
		_, ok := value.(string)
		return ok
	case "Boolean":
		_, ok := value.(bool)
		return ok
	case "ID":
		if _, ok := value.(string); ok {
			return true
		}
		return isIntegral(value)
	default:
		return false
	}
}

func isIntegral(value interface{}) bool {
	switch n := value.(type) {
	case int, int32, int64:
		return true
	case json.Number:
		_, err := n.Int64()
		return err == nil
	case float64:
		return n == float64(int64(n))
	default:
		return false
	}
}

func isNumeric(value interface{}) bool {
	switch value.(type) {
	case int, int32, int64, float64, json.Number:
		return true
	default:
		return false
	}
}

func invalidInputValue(path, msg string) string {
	return fmt.Sprintf("%q, %s", path, msg)
}
