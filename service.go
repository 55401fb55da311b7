package weave

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Service is a federated subgraph the gateway polls for its schema.
type Service struct {
	ServiceURL   string
	Name         string
	Version      string
	SchemaSource string
	Schema       *ast.Schema
	Status       string

	tracer trace.Tracer
	client *GraphQLClient
}

// NewService returns a new Service.
func NewService(serviceURL string, opts ...ClientOpt) *Service {
	opts = append(opts, WithUserAgent(GenerateUserAgent("update")))
	s := &Service{
		ServiceURL: serviceURL,
		tracer:     otel.GetTracerProvider().Tracer(instrumentationName),
		client:     NewClientWithoutKeepAlive(opts...),
	}
	return s
}

const servicePollQuery = `query weaveServicePoll { service { name, version, schema } }`

// Update queries the service's schema, name and version and updates its status.
func (s *Service) Update(ctx context.Context) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "Federated Service Schema Update",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			semconv.GraphqlOperationTypeQuery,
			semconv.GraphqlOperationName("weaveServicePoll"),
			semconv.GraphqlDocument(servicePollQuery),
			attribute.String("graphql.federation.service", s.Name),
		),
	)
	defer span.End()

	raw, err := s.client.Request(ctx, s.ServiceURL, NewRequest(servicePollQuery))
	if err != nil {
		s.SchemaSource = ""
		s.Status = "Unreachable"
		return false, err
	}

	var sub subgraphResponse
	if err := json.Unmarshal(raw, &sub); err != nil {
		s.Status = "Unreachable"
		return false, err
	}
	obj, ok := sub.Data.AsObject()
	if !ok {
		s.Status = "Unreachable"
		return false, fmt.Errorf("weave: service poll returned no data")
	}
	serviceVal, ok := obj.Get("service")
	if !ok {
		s.Status = "Unreachable"
		return false, fmt.Errorf("weave: service poll response missing service field")
	}
	serviceObj, _ := serviceVal.AsObject()
	name, _ := getString(serviceObj, "name")
	version, _ := getString(serviceObj, "version")
	schemaSource, _ := getString(serviceObj, "schema")

	updated := schemaSource != s.SchemaSource

	s.Name = name
	s.Version = version
	s.SchemaSource = schemaSource

	schema, err := gqlparser.LoadSchema(&ast.Source{Name: s.ServiceURL, Input: schemaSource})
	if err != nil {
		s.Status = "Schema error"
		return false, err
	}
	s.Schema = schema

	if err := ValidateSchema(s.Schema); err != nil {
		s.Status = fmt.Sprintf("Invalid (%s)", err)
		return updated, err
	}

	s.Status = "OK"
	return updated, nil
}

func getString(obj *Object, name string) (string, bool) {
	v, ok := obj.Get(name)
	if !ok {
		return "", false
	}
	return v.AsString()
}
