package testsrv

import (
	"net/http/httptest"

	"github.com/weavegraph/weave"
)

const gadgetServiceSDL = `
directive @boundary on OBJECT

type Query {
	service: Service!
	_entities(representations: [_Any!]!): [_Entity]!
}

type Service {
	name: String!
	version: String!
	schema: String!
}

scalar _Any
union _Entity = Gizmo

type Gizmo @boundary {
	id: ID!
	gadget: Gadget
}

interface Gadget {
	id: ID!
	name: String!
}

type Jetpack implements Gadget {
	id: ID!
	name: String!
	range: String!
}

type InvisibleCar implements Gadget {
	id: ID!
	name: String!
	cloaked: Boolean!
}
`

func jetpack(id, name, rng string) weave.V {
	o := weave.NewObject()
	o.Set("id", weave.String(id))
	o.Set("name", weave.String(name))
	o.Set("range", weave.String(rng))
	o.Set("__typename", weave.String("Jetpack"))
	return weave.ObjectValue(o)
}

func invisibleCar(id, name string, cloaked bool) weave.V {
	o := weave.NewObject()
	o.Set("id", weave.String(id))
	o.Set("name", weave.String(name))
	o.Set("cloaked", weave.Bool(cloaked))
	o.Set("__typename", weave.String("InvisibleCar"))
	return weave.ObjectValue(o)
}

var gizmoGadgets = map[string]weave.V{
	"GIZMO1": jetpack("JETPACK1", "Jetpack #1", "500km"),
	"GIZMO2": invisibleCar("AM1", "Vanquish", true),
}

// NewGadgetService starts a subgraph owning the Gizmo boundary type's
// gadget field, resolved through `_entities` the way a second service
// sharding a boundary object has to be.
func NewGadgetService() *httptest.Server {
	handler := newFederatedHandler(gadgetServiceSDL, "gadget-service", "0.0.1", nil, resolveGadgetEntity)
	return newTestServer(handler)
}

func resolveGadgetEntity(typename string, representation *weave.Object) (weave.V, bool) {
	if typename != "Gizmo" {
		return weave.V{}, false
	}
	idVal, _ := representation.Get("id")
	id, _ := idVal.AsString()

	o := weave.NewObject()
	o.Set("id", weave.String(id))
	o.Set("__typename", weave.String("Gizmo"))
	if gadget, ok := gizmoGadgets[id]; ok {
		o.Set("gadget", gadget)
	} else {
		o.Set("gadget", weave.Null())
	}
	return weave.ObjectValue(o), true
}
