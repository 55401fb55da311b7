package testsrv

import (
	"fmt"
	"net/http/httptest"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/weavegraph/weave"
)

const gizmoServiceSDL = `
directive @boundary on OBJECT

type Query {
	gizmo(id: ID!): Gizmo!
	service: Service!
}

type Service {
	name: String!
	version: String!
	schema: String!
}

type Gizmo @boundary {
	id: ID!
	name: String!
}
`

func gizmoRecord(id, name string) weave.V {
	o := weave.NewObject()
	o.Set("id", weave.String(id))
	o.Set("name", weave.String(name))
	o.Set("__typename", weave.String("Gizmo"))
	return weave.ObjectValue(o)
}

var gizmoRecords = map[string]weave.V{
	"GIZMO1": gizmoRecord("GIZMO1", "Gizmo #1"),
	"GIZMO2": gizmoRecord("GIZMO2", "Gizmo #2"),
	"GIZMO3": gizmoRecord("GIZMO3", "Gizmo #3"),
}

// NewGizmoService starts a subgraph owning the Gizmo boundary type's id and
// name fields, the way the catalog-owning service of a sharded boundary
// object would.
func NewGizmoService() *httptest.Server {
	handler := newFederatedHandler(gizmoServiceSDL, "gizmo-service", "0.0.1", resolveGizmoRoot, nil)
	return newTestServer(handler)
}

func resolveGizmoRoot(field *ast.Field, variables *weave.Object) (weave.V, error) {
	if field.Name != "gizmo" {
		return weave.V{}, fmt.Errorf("gizmo-service: unknown field %q", field.Name)
	}
	id, _ := argValue(field, "id")
	rec, ok := gizmoRecords[id]
	if !ok {
		return weave.V{}, fmt.Errorf("gizmo-service: no gizmo with id %q", id)
	}
	return rec, nil
}
