// Package testsrv spins up tiny in-process subgraphs for exercising the
// gateway's executor end to end: real HTTP round trips, real GraphQL query
// text, real `_entities` representation fetches, against fixed in-memory
// data. Each subgraph interprets the request's selection set against its
// own schema using gqlparser, the same library the gateway itself parses
// operations with, and renders responses through the gateway's own ordered
// value type so field order survives the wire round trip untouched.
package testsrv

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/weavegraph/weave"
)

// rootResolver answers a single root field (other than the universal
// `service` and `_entities` fields, which every subgraph in this package
// answers the same way) with the resolved object.
type rootResolver func(field *ast.Field, variables *weave.Object) (weave.V, error)

// entityResolver answers one representation from an `_entities` batch,
// keyed by its __typename.
type entityResolver func(typename string, representation *weave.Object) (weave.V, bool)

type federatedService struct {
	schema   *ast.Schema
	name     string
	version  string
	sdl      string
	resolve  rootResolver
	entities entityResolver
}

func newFederatedHandler(sdl, name, version string, resolve rootResolver, entities entityResolver) http.Handler {
	schema := gqlparser.MustLoadSchema(&ast.Source{Name: name + ".graphql", Input: sdl})
	fs := &federatedService{schema: schema, name: name, version: version, sdl: sdl, resolve: resolve, entities: entities}
	return http.HandlerFunc(fs.serveHTTP)
}

func newTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

func (fs *federatedService) serveHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		fs.writeError(w, err)
		return
	}
	body, err := weave.ParseValue(raw)
	if err != nil {
		fs.writeError(w, err)
		return
	}
	bodyObj, _ := body.AsObject()
	queryVal, _ := bodyObj.Get("query")
	queryStr, _ := queryVal.AsString()

	var variables *weave.Object
	if variablesVal, ok := bodyObj.Get("variables"); ok {
		variables, _ = variablesVal.AsObject()
	}
	if variables == nil {
		variables = weave.NewObject()
	}

	doc, err := gqlparser.LoadQuery(fs.schema, queryStr)
	if err != nil {
		fs.writeError(w, err)
		return
	}
	op := doc.Operations[0]

	data := weave.NewObject()
	for _, selection := range op.SelectionSet {
		field, ok := selection.(*ast.Field)
		if !ok {
			continue
		}
		value, err := fs.resolveRootField(field, variables, doc)
		if err != nil {
			fs.writeError(w, err)
			return
		}
		data.Set(field.Alias, value)
	}

	fs.writeData(w, weave.ObjectValue(data))
}

func (fs *federatedService) resolveRootField(field *ast.Field, variables *weave.Object, doc *ast.QueryDocument) (weave.V, error) {
	switch field.Name {
	case "service":
		svc := weave.NewObject()
		svc.Set("name", weave.String(fs.name))
		svc.Set("version", weave.String(fs.version))
		svc.Set("schema", weave.String(fs.sdl))
		svc.Set("__typename", weave.String("Service"))
		return project(weave.ObjectValue(svc), field.SelectionSet, doc), nil
	case "_entities":
		repsVal, _ := variables.Get("representations")
		reps, _ := repsVal.AsList()
		out := make([]weave.V, 0, len(reps))
		for _, rep := range reps {
			repObj, ok := rep.AsObject()
			if !ok {
				out = append(out, weave.Null())
				continue
			}
			typenameVal, _ := repObj.Get("__typename")
			typename, _ := typenameVal.AsString()
			resolved, ok := fs.entities(typename, repObj)
			if !ok {
				out = append(out, weave.Null())
				continue
			}
			out = append(out, project(resolved, field.SelectionSet, doc))
		}
		return weave.List(out...), nil
	default:
		resolved, err := fs.resolve(field, variables)
		if err != nil {
			return weave.V{}, err
		}
		return project(resolved, field.SelectionSet, doc), nil
	}
}

// project walks selectionSet against value, keeping only the fields
// actually requested and in the order they were requested, resolving
// inline fragments and fragment spreads by comparing the fragment's type
// condition against value's own "__typename".
func project(value weave.V, selectionSet ast.SelectionSet, doc *ast.QueryDocument) weave.V {
	if value.IsNull() || len(selectionSet) == 0 {
		return value
	}

	if list, ok := value.AsList(); ok {
		out := make([]weave.V, len(list))
		for i, v := range list {
			out[i] = project(v, selectionSet, doc)
		}
		return weave.List(out...)
	}

	obj, ok := value.AsObject()
	if !ok {
		return value
	}

	typenameVal, _ := obj.Get("__typename")
	typename, _ := typenameVal.AsString()

	out := weave.NewObject()
	applySelection(out, obj, selectionSet, typename, doc)
	return weave.ObjectValue(out)
}

func applySelection(out *weave.Object, obj *weave.Object, selectionSet ast.SelectionSet, typename string, doc *ast.QueryDocument) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *ast.Field:
			if sel.Name == "__typename" {
				out.Set(sel.Alias, weave.String(typename))
				continue
			}
			child, _ := obj.Get(sel.Name)
			out.Set(sel.Alias, project(child, sel.SelectionSet, doc))
		case *ast.InlineFragment:
			if sel.TypeCondition == "" || sel.TypeCondition == typename {
				applySelection(out, obj, sel.SelectionSet, typename, doc)
			}
		case *ast.FragmentSpread:
			frag := doc.Fragments.ForName(sel.Name)
			if frag != nil && (frag.TypeCondition == "" || frag.TypeCondition == typename) {
				applySelection(out, obj, frag.SelectionSet, typename, doc)
			}
		}
	}
}

func argValue(field *ast.Field, name string) (string, bool) {
	arg := field.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return "", false
	}
	return arg.Value.Raw, arg.Value.Raw != ""
}

func (fs *federatedService) writeData(w http.ResponseWriter, data weave.V) {
	b, err := weave.ObjectValue(singleEntry("data", data)).MarshalJSON()
	if err != nil {
		fs.writeError(w, err)
		return
	}
	_, _ = w.Write(b)
}

func (fs *federatedService) writeError(w http.ResponseWriter, err error) {
	errObj := weave.NewObject()
	errObj.Set("message", weave.String("testsrv: "+err.Error()))
	b, _ := weave.ObjectValue(singleEntry("errors", weave.List(weave.ObjectValue(errObj)))).MarshalJSON()
	_, _ = w.Write(b)
}

func singleEntry(key string, value weave.V) *weave.Object {
	o := weave.NewObject()
	o.Set(key, value)
	return o
}
