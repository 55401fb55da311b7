package weave

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// TransportError wraps a failure to reach a subgraph, as opposed to a
// well-formed GraphQL response that happens to carry errors.
type TransportError struct {
	ServiceName string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("weave: transport error calling %s: %v", e.ServiceName, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Coordinator sends one GraphQL request to a subgraph and returns its
// response. The core executor never assumes caching or batching behind this
// interface; those are a coordinator implementation's business.
type Coordinator interface {
	Query(ctx context.Context, serviceURL, query string, variables map[string]interface{}) (Response, error)
}

// HTTPCoordinator is a Coordinator backed by the gateway's GraphQLClient.
type HTTPCoordinator struct {
	client *GraphQLClient
}

// NewHTTPCoordinator builds a Coordinator that issues requests through client.
func NewHTTPCoordinator(client *GraphQLClient) *HTTPCoordinator {
	return &HTTPCoordinator{client: client}
}

// Query implements Coordinator.
func (c *HTTPCoordinator) Query(ctx context.Context, serviceURL, query string, variables map[string]interface{}) (Response, error) {
	request := NewRequest(query).WithVariables(variables)

	raw, err := c.client.Request(ctx, serviceURL, request)
	if err != nil {
		return Response{}, &TransportError{ServiceName: serviceURL, Err: err}
	}

	var sub subgraphResponse
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Response{}, &TransportError{ServiceName: serviceURL, Err: err}
	}
	if sub.Data.kind == KindNull && len(sub.Errors) == 0 {
		sub.Data = Null()
	}
	return Response{Data: sub.Data, Errors: sub.Errors}, nil
}

// formatQuery renders a fetch selection set as a document string, reusing
// the gateway's own selection-set printer. A request carrying a
// "representations" variable (every Flatten's batched _entities fetch)
// gets the matching operation-level variable declaration; it is otherwise
// sent as an anonymous query, same as the gateway's root fetches.
func formatQuery(selectionSet ast.SelectionSet, variables map[string]interface{}) string {
	body := formatSelectionSetSingleLine(context.Background(), nil, selectionSet)
	if _, ok := variables["representations"]; ok {
		return "query($representations: [_Any!]!) " + body
	}
	return body
}
