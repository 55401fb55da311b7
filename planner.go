package weave

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
)

// PlanningContext carries everything Plan needs to route an operation's
// selection set across subgraphs.
type PlanningContext struct {
	Operation  *ast.OperationDefinition
	Schema     *ast.Schema
	Locations  FieldURLMap
	IsBoundary map[string]bool
	Services   map[string]*Service
}

// Plan builds a PlanNode tree for ctx.Operation: one Fetch per service
// touched at the root, run in Parallel for queries (Sequence for
// mutations, which must not interleave), each Fetch followed, in a Sequence,
// by a Flatten for every boundary object field whose selection crosses into
// another service.
func Plan(ctx *PlanningContext) (PlanNode, error) {
	var parentType string
	switch ctx.Operation.Operation {
	case ast.Query:
		parentType = queryObjectName
	case ast.Mutation:
		parentType = mutationObjectName
	default:
		return PlanNode{}, fmt.Errorf("weave: subscriptions are not planned by this executor")
	}

	var introspectionFields ast.SelectionSet
	var routable ast.SelectionSet
	for _, selection := range ctx.Operation.SelectionSet {
		if field, ok := selection.(*ast.Field); ok && isGraphQLBuiltinName(field.Name) {
			introspectionFields = append(introspectionFields, field)
			continue
		}
		routable = append(routable, selection)
	}

	byLocation, err := routeRootSelectionSet(ctx, parentType, routable)
	if err != nil {
		return PlanNode{}, err
	}

	prefixCounter := 0
	var nodes []PlanNode
	if len(introspectionFields) > 0 {
		nodes = append(nodes, IntrospectionPlanNode(introspectionFields))
	}
	for location, selectionSet := range byLocation {
		resolved, flattens, err := planSelectionSet(ctx, parentType, location, selectionSet, nil, &prefixCounter)
		if err != nil {
			return PlanNode{}, err
		}
		name := location
		if svc, ok := ctx.Services[location]; ok && svc.Name != "" {
			name = svc.Name
		}
		fetch := FetchPlanNode(location, name, resolved, nil, nil)
		if len(flattens) == 0 {
			nodes = append(nodes, fetch)
		} else {
			// The flattens collect representation keys this fetch writes, so
			// they run after it rather than alongside it.
			nodes = append(nodes, Sequence(append([]PlanNode{fetch}, flattens...)...))
		}
	}

	if ctx.Operation.Operation == ast.Mutation {
		return Sequence(nodes...), nil
	}
	return Parallel(nodes...), nil
}

// routeRootSelectionSet partitions a root-level selection set by the
// service that owns each field, using the gateway's field-to-location map.
func routeRootSelectionSet(ctx *PlanningContext, parentType string, input ast.SelectionSet) (map[string]ast.SelectionSet, error) {
	result := map[string]ast.SelectionSet{}
	for _, selection := range input {
		field, ok := selection.(*ast.Field)
		if !ok || isGraphQLBuiltinName(field.Name) {
			continue
		}
		loc, err := ctx.Locations.URLFor(parentType, "", field.Name)
		if err != nil {
			return nil, err
		}
		result[loc] = append(result[loc], field)
	}
	return result, nil
}

// planSelectionSet walks a selection set belonging to currentType, already
// routed to location, rewriting it to stop at the boundary of another
// service's ownership. A field of a boundary object crosses into another
// service when the gateway's field-to-location map resolves it somewhere
// other than location; every field crossing to the same location during
// this call shares one representation (id + __typename of currentType,
// prefixed uniquely per transition) and is batch-fetched together via a
// single Flatten's `_entities` query.
func planSelectionSet(ctx *PlanningContext, currentType string, location string, input ast.SelectionSet, path []PathSegment, prefixCounter *int) (ast.SelectionSet, []PlanNode, error) {
	var resolved ast.SelectionSet
	var flattens []PlanNode

	byTransitionService := map[string][]*ast.Field{}

	for _, selection := range input {
		field, ok := selection.(*ast.Field)
		if !ok {
			resolved = append(resolved, selection)
			continue
		}

		if ctx.IsBoundary[currentType] {
			if fieldLoc, err := ctx.Locations.URLFor(currentType, location, field.Name); err == nil && fieldLoc != location {
				byTransitionService[fieldLoc] = append(byTransitionService[fieldLoc], field)
				continue
			}
		}

		if field.SelectionSet == nil || field.Definition == nil {
			resolved = append(resolved, field)
			continue
		}

		childType := field.Definition.Type.Name()
		childPath := append(append([]PathSegment(nil), path...), PathSegment{
			Name:   field.Alias,
			IsList: field.Definition.Type.Elem != nil,
		})
		childResolved, childFlattens, err := planSelectionSet(ctx, childType, location, field.SelectionSet, childPath, prefixCounter)
		if err != nil {
			return nil, nil, err
		}
		newField := *field
		newField.SelectionSet = childResolved
		resolved = append(resolved, &newField)
		flattens = append(flattens, childFlattens...)
	}

	currentDef := ctx.Schema.Types[currentType]
	for targetLocation, fields := range byTransitionService {
		*prefixCounter++
		prefix := strconv.Itoa(*prefixCounter)

		if currentDef != nil {
			if idDef := currentDef.Fields.ForName(IdFieldName); idDef != nil {
				resolved = append(resolved,
					&ast.Field{Alias: representationKeyName(prefix, IdFieldName), Name: IdFieldName, Definition: idDef},
					&ast.Field{Alias: representationKeyName(prefix, "__typename"), Name: "__typename",
						Definition: &ast.FieldDefinition{Name: "__typename", Type: ast.NamedType("String", nil)}},
				)
			}
		}

		var entitySelection ast.SelectionSet
		var nestedFlattens []PlanNode
		for _, field := range fields {
			if field.SelectionSet == nil || field.Definition == nil {
				entitySelection = append(entitySelection, field)
				continue
			}
			fieldPath := append(append([]PathSegment(nil), path...), PathSegment{
				Name:   field.Alias,
				IsList: field.Definition.Type.Elem != nil,
			})
			planned, nested, err := planSelectionSet(ctx, field.Definition.Type.Name(), targetLocation, field.SelectionSet, fieldPath, prefixCounter)
			if err != nil {
				return nil, nil, err
			}
			newField := *field
			newField.SelectionSet = planned
			entitySelection = append(entitySelection, &newField)
			nestedFlattens = append(nestedFlattens, nested...)
		}

		name := targetLocation
		if svc, ok := ctx.Services[targetLocation]; ok && svc.Name != "" {
			name = svc.Name
		}
		fetch := FetchPlanNode(targetLocation, name, entitiesSelectionSet(entitySelection), nil, nil)
		flattenNode := FlattenPlanNode(append([]PathSegment(nil), path...), prefix, fetch)
		if len(nestedFlattens) == 0 {
			flattens = append(flattens, flattenNode)
		} else {
			// A flatten whose own entity fetch selects fields that cross into
			// yet another service must run before those chained flattens, since
			// they collect representation keys this one has not written yet.
			flattens = append(flattens, Sequence(append([]PlanNode{flattenNode}, nestedFlattens...)...))
		}
	}

	return resolved, flattens, nil
}

// entitiesSelectionSet wraps selectionSet in the `_entities(representations:
// $representations) { ... }` shape a subgraph serving federated entities is
// expected to resolve.
func entitiesSelectionSet(selectionSet ast.SelectionSet) ast.SelectionSet {
	return ast.SelectionSet{
		&ast.Field{
			Alias: "_entities",
			Name:  "_entities",
			Arguments: ast.ArgumentList{{
				Name:  "representations",
				Value: &ast.Value{Kind: ast.Variable, Raw: "representations"},
			}},
			SelectionSet: selectionSet,
		},
	}
}

// FieldURLMap maps fields to service URLs
type FieldURLMap map[string]string

// URLFor returns the URL for the given field
func (m FieldURLMap) URLFor(parent, parentLocation, field string) (string, error) {
	if field == "__typename" {
		return parentLocation, nil
	}
	key := m.keyFor(parent, field)
	value, exists := m[key]
	if !exists {
		return "", fmt.Errorf("could not find location for %q", key)
	}
	return value, nil
}

// RegisterURL registers the location for the given field
func (m FieldURLMap) RegisterURL(parent string, field string, location string) {
	key := m.keyFor(parent, field)
	m[key] = location
}

func (m FieldURLMap) keyFor(parent string, field string) string {
	return fmt.Sprintf("%s.%s", parent, field)
}
