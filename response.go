package weave

import (
	"bytes"
	"encoding/json"
)

// ErrorLocation is a wire-level line/column pair. The executor never emits
// populated locations: a subgraph's source locations refer to a document the
// gateway's caller never saw.
type ErrorLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ServerError is one entry of a Response's error list.
type ServerError struct {
	Message   string          `json:"message"`
	Locations []ErrorLocation `json:"locations"`
}

// Response is the result of executing a plan: the assembled data tree plus
// any errors accumulated along the way.
type Response struct {
	Data   V             `json:"data"`
	Errors []ServerError `json:"errors,omitempty"`
}

// NewResponse returns an empty response: data is null, errors is empty.
func NewResponse() Response {
	return Response{Data: Null()}
}

// MarshalJSON renders the wire shape {"data": ..., "errors": [...]}.
// Locations are always emitted as an empty array, never omitted.
func (r Response) MarshalJSON() ([]byte, error) {
	data, err := r.Data.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"data":`)
	buf.Write(data)

	errs := r.Errors
	if errs == nil {
		errs = []ServerError{}
	}
	normalized := make([]ServerError, len(errs))
	for i, e := range errs {
		locs := e.Locations
		if locs == nil {
			locs = []ErrorLocation{}
		}
		normalized[i] = ServerError{Message: e.Message, Locations: locs}
	}
	errsJSON, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"errors":`)
	buf.Write(errsJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// subgraphResponse is the shape returned by a coordinator query: the raw
// data payload (still needing interpretation, e.g. stripping `_entities`)
// plus any errors the subgraph reported.
type subgraphResponse struct {
	Data   V             `json:"data"`
	Errors []ServerError `json:"errors"`
}
