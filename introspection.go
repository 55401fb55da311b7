package weave

import (
	"context"

	"github.com/vektah/gqlparser/v2/ast"
)

// resolveIntrospectionSelectionSet resolves a top-level __schema/__type
// selection set entirely in-process against schema, without a subgraph
// round trip. Ported from the gateway's own introspection resolvers, which
// built map[string]interface{} trees for gqlgen; these build V instead so
// the result merges into the response tree the same way a Fetch's result
// does.
func resolveIntrospectionSelectionSet(ctx context.Context, schema *ast.Schema, selectionSet ast.SelectionSet) V {
	if schema == nil {
		return Null()
	}
	obj := NewObject()
	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "__schema":
			obj.Set(f.Alias, resolveSchema(ctx, schema, f.SelectionSet))
		case "__type":
			nameArg := f.Arguments.ForName("name")
			if nameArg == nil {
				obj.Set(f.Alias, Null())
				continue
			}
			name := nameArg.Value.Raw
			obj.Set(f.Alias, resolveType(ctx, schema, &ast.Type{NamedType: name}, f.SelectionSet))
		}
	}
	return ObjectValue(obj)
}

func resolveSchema(ctx context.Context, schema *ast.Schema, selectionSet ast.SelectionSet) V {
	obj := NewObject()
	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "types":
			var types []V
			for _, t := range schema.Types {
				types = append(types, resolveType(ctx, schema, &ast.Type{NamedType: t.Name}, f.SelectionSet))
			}
			obj.Set(f.Alias, List(types...))
		case "queryType":
			obj.Set(f.Alias, resolveType(ctx, schema, &ast.Type{NamedType: queryObjectName}, f.SelectionSet))
		case "mutationType":
			if schema.Mutation == nil {
				obj.Set(f.Alias, Null())
				continue
			}
			obj.Set(f.Alias, resolveType(ctx, schema, &ast.Type{NamedType: mutationObjectName}, f.SelectionSet))
		case "subscriptionType":
			if schema.Subscription == nil {
				obj.Set(f.Alias, Null())
				continue
			}
			obj.Set(f.Alias, resolveType(ctx, schema, &ast.Type{NamedType: subscriptionObjectName}, f.SelectionSet))
		case "directives":
			var directives []V
			for _, d := range schema.Directives {
				directives = append(directives, resolveDirective(ctx, schema, d, f.SelectionSet))
			}
			obj.Set(f.Alias, List(directives...))
		}
	}
	return ObjectValue(obj)
}

func resolveType(ctx context.Context, schema *ast.Schema, typ *ast.Type, selectionSet ast.SelectionSet) V {
	if typ == nil {
		return Null()
	}
	obj := NewObject()

	if typ.NonNull {
		for _, f := range selectionSetToFields(selectionSet) {
			switch f.Name {
			case "kind":
				obj.Set(f.Alias, Enum("NON_NULL"))
			case "ofType":
				obj.Set(f.Alias, resolveType(ctx, schema, &ast.Type{
					NamedType: typ.NamedType,
					Elem:      typ.Elem,
					NonNull:   false,
				}, f.SelectionSet))
			default:
				obj.Set(f.Alias, Null())
			}
		}
		return ObjectValue(obj)
	}

	if typ.Elem != nil {
		for _, f := range selectionSetToFields(selectionSet) {
			switch f.Name {
			case "kind":
				obj.Set(f.Alias, Enum("LIST"))
			case "ofType":
				obj.Set(f.Alias, resolveType(ctx, schema, typ.Elem, f.SelectionSet))
			default:
				obj.Set(f.Alias, Null())
			}
		}
		return ObjectValue(obj)
	}

	namedType, ok := schema.Types[typ.NamedType]
	if !ok {
		return Null()
	}

	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "kind":
			obj.Set(f.Alias, Enum(string(namedType.Kind)))
		case "name":
			obj.Set(f.Alias, String(namedType.Name))
		case "description":
			obj.Set(f.Alias, String(namedType.Description))
		case "fields":
			includeDeprecated := boolArg(f, "includeDeprecated")
			var fields []V
			for _, fi := range namedType.Fields {
				if isGraphQLBuiltinName(fi.Name) {
					continue
				}
				if !includeDeprecated {
					if deprecated, _ := hasDeprecatedDirective(fi.Directives); deprecated {
						continue
					}
				}
				fields = append(fields, resolveField(ctx, schema, fi, f.SelectionSet))
			}
			obj.Set(f.Alias, List(fields...))
		case "interfaces":
			var interfaces []V
			for _, i := range namedType.Interfaces {
				interfaces = append(interfaces, resolveType(ctx, schema, &ast.Type{NamedType: i}, f.SelectionSet))
			}
			obj.Set(f.Alias, List(interfaces...))
		case "possibleTypes":
			if len(namedType.Types) == 0 {
				obj.Set(f.Alias, Null())
				continue
			}
			var types []V
			for _, t := range namedType.Types {
				types = append(types, resolveType(ctx, schema, &ast.Type{NamedType: t}, f.SelectionSet))
			}
			obj.Set(f.Alias, List(types...))
		case "enumValues":
			includeDeprecated := boolArg(f, "includeDeprecated")
			var enums []V
			for _, e := range namedType.EnumValues {
				if !includeDeprecated {
					if deprecated, _ := hasDeprecatedDirective(e.Directives); deprecated {
						continue
					}
				}
				enums = append(enums, resolveEnumValue(e, f.SelectionSet))
			}
			obj.Set(f.Alias, List(enums...))
		case "inputFields":
			var inputFields []V
			for _, fi := range namedType.Fields {
				inputFields = append(inputFields, resolveField(ctx, schema, fi, f.SelectionSet))
			}
			obj.Set(f.Alias, List(inputFields...))
		default:
			obj.Set(f.Alias, Null())
		}
	}

	return ObjectValue(obj)
}

func resolveField(ctx context.Context, schema *ast.Schema, field *ast.FieldDefinition, selectionSet ast.SelectionSet) V {
	obj := NewObject()
	deprecated, deprecatedReason := hasDeprecatedDirective(field.Directives)

	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "name":
			obj.Set(f.Alias, String(field.Name))
		case "description":
			obj.Set(f.Alias, String(field.Description))
		case "args":
			var args []V
			for _, arg := range field.Arguments {
				args = append(args, resolveInputValue(ctx, schema, arg, f.SelectionSet))
			}
			obj.Set(f.Alias, List(args...))
		case "type":
			obj.Set(f.Alias, resolveType(ctx, schema, field.Type, f.SelectionSet))
		case "isDeprecated":
			obj.Set(f.Alias, Bool(deprecated))
		case "deprecationReason":
			if deprecatedReason == nil {
				obj.Set(f.Alias, Null())
			} else {
				obj.Set(f.Alias, String(*deprecatedReason))
			}
		}
	}
	return ObjectValue(obj)
}

func resolveInputValue(ctx context.Context, schema *ast.Schema, arg *ast.ArgumentDefinition, selectionSet ast.SelectionSet) V {
	obj := NewObject()
	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "name":
			obj.Set(f.Alias, String(arg.Name))
		case "description":
			obj.Set(f.Alias, String(arg.Description))
		case "type":
			obj.Set(f.Alias, resolveType(ctx, schema, arg.Type, f.SelectionSet))
		case "defaultValue":
			if arg.DefaultValue == nil {
				obj.Set(f.Alias, Null())
			} else {
				obj.Set(f.Alias, String(arg.DefaultValue.String()))
			}
		}
	}
	return ObjectValue(obj)
}

func resolveEnumValue(enum *ast.EnumValueDefinition, selectionSet ast.SelectionSet) V {
	obj := NewObject()
	deprecated, deprecatedReason := hasDeprecatedDirective(enum.Directives)

	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "name":
			obj.Set(f.Alias, String(enum.Name))
		case "description":
			obj.Set(f.Alias, String(enum.Description))
		case "isDeprecated":
			obj.Set(f.Alias, Bool(deprecated))
		case "deprecationReason":
			if deprecatedReason == nil {
				obj.Set(f.Alias, Null())
			} else {
				obj.Set(f.Alias, String(*deprecatedReason))
			}
		}
	}
	return ObjectValue(obj)
}

func resolveDirective(ctx context.Context, schema *ast.Schema, directive *ast.DirectiveDefinition, selectionSet ast.SelectionSet) V {
	obj := NewObject()
	for _, f := range selectionSetToFields(selectionSet) {
		switch f.Name {
		case "name":
			obj.Set(f.Alias, String(directive.Name))
		case "description":
			obj.Set(f.Alias, String(directive.Description))
		case "locations":
			var locs []V
			for _, l := range directive.Locations {
				locs = append(locs, Enum(string(l)))
			}
			obj.Set(f.Alias, List(locs...))
		case "args":
			var args []V
			for _, arg := range directive.Arguments {
				args = append(args, resolveInputValue(ctx, schema, arg, f.SelectionSet))
			}
			obj.Set(f.Alias, List(args...))
		}
	}
	return ObjectValue(obj)
}

func selectionSetToFields(selectionSet ast.SelectionSet) []*ast.Field {
	var result []*ast.Field
	for _, s := range selectionSet {
		switch s := s.(type) {
		case *ast.Field:
			result = append(result, s)
		case *ast.FragmentSpread:
			result = append(result, selectionSetToFields(s.Definition.SelectionSet)...)
		case *ast.InlineFragment:
			result = append(result, selectionSetToFields(s.SelectionSet)...)
		}
	}
	return result
}

func hasDeprecatedDirective(directives ast.DirectiveList) (bool, *string) {
	for _, d := range directives {
		if d.Name == "deprecated" {
			var reason string
			reasonArg := d.Arguments.ForName("reason")
			if reasonArg != nil {
				reason = reasonArg.Value.Raw
			}
			return true, &reason
		}
	}
	return false, nil
}

func boolArg(f *ast.Field, name string) bool {
	arg := f.Arguments.ForName(name)
	if arg == nil {
		return false
	}
	v, err := arg.Value.Value(nil)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
