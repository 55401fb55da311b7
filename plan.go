package weave

import "github.com/vektah/gqlparser/v2/ast"

// PlanNode is the tagged union of execution plan nodes: exactly one of the
// Sequence/Parallel/Introspection/Fetch/Flatten fields is meaningful,
// selected by Kind. Modeled as a single struct rather than an interface so
// that plans can be built, inspected and round-tripped without a type
// registry; the executor dispatches with a switch on Kind rather than with
// the type switch the rest of this codebase uses for ast.Selection variants.
type PlanNode struct {
	Kind Kind

	// Sequence, Parallel
	Nodes []PlanNode

	// Introspection
	IntrospectionSelectionSet ast.SelectionSet

	// Fetch
	ServiceURL   string
	ServiceName  string
	SelectionSet ast.SelectionSet
	Variables    map[string]interface{}
	// InsertionPath locates, inside the parent Fetch/Flatten's result, the
	// site this Fetch's result must be merged into. Empty for a root fetch.
	InsertionPath []PathSegment

	// Flatten
	RepresentationPath []PathSegment
	RepresentationKeys []string
	Prefix             string
	Then               *PlanNode
}

// Kind identifies the PlanNode variant in play.
type Kind int

const (
	KindSequenceNode Kind = iota
	KindParallelNode
	KindIntrospectionNode
	KindFetchNode
	KindFlattenNode
)

var kindNames = [...]string{"sequence", "parallel", "introspection", "fetch", "flatten"}

// String renders Kind as a lowercase label, used as a metrics label value by
// metrics.go's promPlanNodeExecutions counter.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Sequence builds a node whose children run strictly in document order,
// never short-circuiting on a child's error.
func Sequence(nodes ...PlanNode) PlanNode {
	return PlanNode{Kind: KindSequenceNode, Nodes: nodes}
}

// Parallel builds a node whose children run concurrently and are joined
// before the node completes.
func Parallel(nodes ...PlanNode) PlanNode {
	return PlanNode{Kind: KindParallelNode, Nodes: nodes}
}

// IntrospectionPlanNode builds a node resolved entirely in-process against
// the merged schema, without a subgraph round trip.
func IntrospectionPlanNode(selectionSet ast.SelectionSet) PlanNode {
	return PlanNode{Kind: KindIntrospectionNode, IntrospectionSelectionSet: selectionSet}
}

// FetchPlanNode builds a node that sends selectionSet to a single subgraph.
func FetchPlanNode(serviceURL, serviceName string, selectionSet ast.SelectionSet, variables map[string]interface{}, insertionPath []PathSegment) PlanNode {
	return PlanNode{
		Kind:          KindFetchNode,
		ServiceURL:    serviceURL,
		ServiceName:   serviceName,
		SelectionSet:  selectionSet,
		Variables:     variables,
		InsertionPath: insertionPath,
	}
}

// FlattenPlanNode builds a node that collects representations along
// representationPath (stripping fields named __key<prefix>_*), sends them
// as a batched _entities fetch to a subgraph via then, and grafts the
// results back at the same sites.
func FlattenPlanNode(representationPath []PathSegment, prefix string, then PlanNode) PlanNode {
	return PlanNode{
		Kind:               KindFlattenNode,
		RepresentationPath: representationPath,
		Prefix:             prefix,
		Then:               &then,
	}
}
