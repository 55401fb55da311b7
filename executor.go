package weave

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/sync/errgroup"
)

// Executor runs a PlanNode tree against a Coordinator, accumulating results
// into a single Response. One Executor is scoped to a single request.
type Executor struct {
	coordinator Coordinator
	schema      *ast.Schema

	mu   sync.Mutex
	resp Response
}

// NewExecutor returns an Executor that dispatches subgraph fetches through
// coordinator and resolves Introspection nodes against schema. schema may
// be nil for plans that contain no Introspection nodes.
func NewExecutor(coordinator Coordinator, schema *ast.Schema) *Executor {
	return &Executor{coordinator: coordinator, schema: schema, resp: NewResponse()}
}

// Execute runs node to completion and returns the accumulated response. The
// root node's errors and data are merged directly into the zero response;
// callers invoke this once per request.
func (e *Executor) Execute(ctx context.Context, node PlanNode) Response {
	e.executeNode(ctx, node, &e.resp.Data)
	return e.snapshot()
}

func (e *Executor) snapshot() Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Response{Data: e.resp.Data.Clone(), Errors: append([]ServerError(nil), e.resp.Errors...)}
}

// executeNode dispatches on node.Kind. target is the site within the shared
// response tree this node's result merges into; root nodes pass &e.resp.Data.
func (e *Executor) executeNode(ctx context.Context, node PlanNode, target *V) {
	promPlanNodeExecutions.WithLabelValues(node.Kind.String()).Inc()
	switch node.Kind {
	case KindSequenceNode:
		e.executeSequence(ctx, node, target)
	case KindParallelNode:
		e.executeParallel(ctx, node, target)
	case KindIntrospectionNode:
		e.executeIntrospection(ctx, node, target)
	case KindFetchNode:
		e.executeFetch(ctx, node, target)
	case KindFlattenNode:
		e.executeFlatten(ctx, node, target)
	}
}

// executeSequence runs children strictly in order, never short-circuiting:
// a child's error is recorded but does not stop later siblings from
// running, matching the gateway's existing convention of collecting every
// field error into one response rather than aborting on the first.
func (e *Executor) executeSequence(ctx context.Context, node PlanNode, target *V) {
	for _, child := range node.Nodes {
		e.executeNode(ctx, child, target)
	}
}

// executeParallel runs children concurrently and joins before returning.
// Each child merges into the same shared target, guarded by e.mu; the
// guard is never held across a child's own execution or any coordinator
// I/O, only around the merge step, so unrelated children never block each
// other's network round trips.
func (e *Executor) executeParallel(ctx context.Context, node PlanNode, target *V) {
	if len(node.Nodes) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range node.Nodes {
		child := node.Nodes[i]
		g.Go(func() error {
			e.executeNode(gctx, child, target)
			return nil
		})
	}
	_ = g.Wait()
}

// executeIntrospection resolves a selection set entirely in-process,
// without a subgraph round trip, via the introspection bridge.
func (e *Executor) executeIntrospection(ctx context.Context, node PlanNode, target *V) {
	result := resolveIntrospectionSelectionSet(ctx, e.schema, node.IntrospectionSelectionSet)

	e.mu.Lock()
	defer e.mu.Unlock()
	mergeAtPath(target, node.InsertionPath, result)
}

// executeFetch sends node's selection set to its subgraph and merges the
// result at node.InsertionPath within target. A subgraph response carrying
// errors has its data discarded entirely rather than merged alongside the
// errors — a subgraph reporting a field error makes no claim about the rest
// of its response being trustworthy.
func (e *Executor) executeFetch(ctx context.Context, node PlanNode, target *V) {
	query := formatQuery(node.SelectionSet, node.Variables)
	resp, err := e.coordinator.Query(ctx, node.ServiceURL, query, node.Variables)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.resp.Errors = append(e.resp.Errors, ServerError{Message: err.Error()})
		return
	}

	mergeErrors(&e.resp.Errors, resp.Errors)
	if len(resp.Errors) != 0 {
		promSubgraphQueryErrorCounter.WithLabelValues(node.ServiceName).Add(float64(len(resp.Errors)))
		return
	}
	mergeAtPath(target, node.InsertionPath, resp.Data)
}

// executeFlatten collects representations at RepresentationPath (under the
// guard, since it mutates the shared tree), sends them as a single batched
// fetch via Then, and grafts returned entities back at the same sites. The
// representation collection and entity graft both happen under e.mu so a
// concurrent sibling never observes a partially-stripped tree; only the
// Then fetch's own coordinator call runs outside the guard. Entity
// integration follows the same discipline as executeFetch: a response
// carrying errors has its entities discarded rather than grafted in.
func (e *Executor) executeFlatten(ctx context.Context, node PlanNode, target *V) {
	e.mu.Lock()
	representations := collectRepresentations(target, node.RepresentationPath, node.Prefix)
	e.mu.Unlock()

	if len(representations) == 0 {
		return
	}
	promRepresentationBatchSize.Observe(float64(len(representations)))

	variables := map[string]interface{}{"representations": representationsToJSON(representations)}
	then := *node.Then
	then.Variables = mergeVariables(then.Variables, variables)

	query := formatQuery(then.SelectionSet, then.Variables)
	resp, err := e.coordinator.Query(ctx, then.ServiceURL, query, then.Variables)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.resp.Errors = append(e.resp.Errors, ServerError{Message: err.Error()})
		return
	}
	mergeErrors(&e.resp.Errors, resp.Errors)

	if len(resp.Errors) != 0 {
		promSubgraphQueryErrorCounter.WithLabelValues(then.ServiceName).Add(float64(len(resp.Errors)))
		return
	}
	entities, _ := entitiesFromResponse(resp.Data)
	applyEntities(target, node.RepresentationPath, entities)
}

func mergeVariables(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func representationsToJSON(reps []V) []interface{} {
	out := make([]interface{}, len(reps))
	for i, r := range reps {
		b, err := r.MarshalJSON()
		if err != nil {
			continue
		}
		var x interface{}
		_ = json.Unmarshal(b, &x)
		out[i] = x
	}
	return out
}

// entitiesFromResponse reads the `_entities` field out of a subgraph's
// response data, the shape every flatten step's subgraph is expected to
// return for a representations-based query.
func entitiesFromResponse(data V) ([]V, bool) {
	obj, ok := data.AsObject()
	if !ok {
		return nil, false
	}
	entitiesVal, ok := obj.Get("_entities")
	if !ok {
		return nil, false
	}
	list, ok := entitiesVal.AsList()
	if !ok {
		return nil, false
	}
	return list, true
}
