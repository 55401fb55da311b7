package weave

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql"
	log "github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// NewExecutableSchema builds the gateway's gqlgen-facing entry point from a
// set of federated services.
func NewExecutableSchema(plugins []Plugin, maxRequestsPerQuery int64, client *GraphQLClient, services ...*Service) *ExecutableSchema {
	serviceMap := make(map[string]*Service)
	for _, s := range services {
		serviceMap[s.ServiceURL] = s
	}

	if client == nil {
		client = NewClientWithPlugins(plugins)
	}

	return &ExecutableSchema{
		Services:            serviceMap,
		GraphqlClient:       client,
		coordinator:         NewHTTPCoordinator(client),
		plugins:             plugins,
		tracer:              otel.GetTracerProvider().Tracer(instrumentationName),
		MaxRequestsPerQuery: maxRequestsPerQuery,
	}
}

// ExecutableSchema holds everything needed to plan and execute a query
// against the federation: the merged schema, field routing table, and the
// set of known subgraphs.
type ExecutableSchema struct {
	MergedSchema        *ast.Schema
	Locations           FieldURLMap
	IsBoundary          map[string]bool
	Services            map[string]*Service
	GraphqlClient       *GraphQLClient
	MaxRequestsPerQuery int64

	tracer      trace.Tracer
	mutex       sync.RWMutex
	plugins     []Plugin
	coordinator Coordinator
}

// UpdateServiceList replaces the list of services with the provided one and
// updates the merged schema.
func (s *ExecutableSchema) UpdateServiceList(ctx context.Context, services []string) error {
	ctx, span := s.tracer.Start(ctx, "Federated Services Update",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.StringSlice("graphql.federation.services", services),
		),
	)
	defer span.End()

	newServices := make(map[string]*Service)
	for _, svcURL := range services {
		if svc, ok := s.Services[svcURL]; ok {
			newServices[svcURL] = svc
		} else {
			newServices[svcURL] = NewService(svcURL, WithHTTPClient(s.GraphqlClient.HTTPClient))
		}
	}
	s.Services = newServices

	return s.UpdateSchema(ctx, true)
}

// UpdateSchema polls every known service for its schema and, if anything
// changed, rebuilds the merged schema and routing tables.
func (s *ExecutableSchema) UpdateSchema(ctx context.Context, forceRebuild bool) error {
	var services []*Service
	var schemas []*ast.Schema
	var updatedServices []string
	var invalidSchema bool

	defer func() {
		if invalidSchema {
			promInvalidSchema.Set(1)
		} else {
			promInvalidSchema.Set(0)
		}
	}()

	var mutex sync.Mutex
	group := errgroup.Group{}
	group.SetLimit(64)
	for url_, s_ := range s.Services {
		url := url_
		svc := s_
		group.Go(func() error {
			logger := log.WithField("url", url)
			updated, err := svc.Update(ctx)
			if err != nil {
				promServiceUpdateErrorCounter.WithLabelValues(svc.ServiceURL).Inc()
				promServiceUpdateErrorGauge.WithLabelValues(svc.ServiceURL).Set(1)
				invalidSchema, forceRebuild = true, true
				logger.WithError(err).Error("unable to update service")
				return nil
			}
			promServiceUpdateErrorGauge.WithLabelValues(svc.ServiceURL).Set(0)
			logger = log.WithFields(log.Fields{"version": svc.Version, "service": svc.Name})

			mutex.Lock()
			defer mutex.Unlock()
			if updated {
				logger.Info("service was updated")
				updatedServices = append(updatedServices, svc.Name)
			}
			services = append(services, svc)
			schemas = append(schemas, svc.Schema)
			return nil
		})
	}
	_ = group.Wait()

	if len(updatedServices) > 0 || forceRebuild {
		log.Info("rebuilding merged schema")
		schema, err := MergeSchemas(schemas...)
		if err != nil {
			invalidSchema = true
			return fmt.Errorf("update of service %v caused schema error: %w", updatedServices, err)
		}

		locations := buildFieldURLMap(services...)
		isBoundary := buildIsBoundaryMap(services...)

		s.mutex.Lock()
		s.Locations = locations
		s.IsBoundary = isBoundary
		s.MergedSchema = schema
		s.mutex.Unlock()
	}

	return nil
}

// Exec returns the query execution handler gqlgen drives every request
// through.
func (s *ExecutableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	return s.ExecuteQuery
}

// ExecuteQuery plans operationCtx.Operation across the known subgraphs,
// executes the plan, and renders the result as a gqlgen response.
func (s *ExecutableSchema) ExecuteQuery(ctx context.Context) *graphql.Response {
	operationCtx := graphql.GetOperationContext(ctx)
	operation := operationCtx.Operation
	variables := operationCtx.Variables

	ctx, span := s.tracer.Start(ctx, "Federated GraphQL Query",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			semconv.GraphqlOperationTypeKey.String(string(operation.Operation)),
			semconv.GraphqlOperationName(operationCtx.OperationName),
			semconv.GraphqlDocument(operationCtx.RawQuery),
		),
	)
	defer span.End()

	traceErr := func(err error) {
		if err == nil {
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	for _, plugin := range s.plugins {
		plugin.InterceptRequest(ctx, operation.Name, operationCtx.RawQuery, variables)
	}

	AddField(ctx, "operation.name", operation.Name)
	AddField(ctx, "operation.type", operation.Operation)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	operation = evaluateSkipAndInclude(variables, operation)
	filteredSchema := s.MergedSchema

	perms, hasPerms := GetPermissionsFromContext(ctx)
	if hasPerms {
		filteredSchema = perms.FilterSchema(s.MergedSchema)
		if errs := perms.FilterAuthorizedFields(operation); len(errs) > 0 {
			traceErr(errs)
			return s.interceptResponse(ctx, operation.Name, operationCtx.RawQuery, variables, &graphql.Response{Errors: errs})
		}
	}

	plan, err := Plan(&PlanningContext{
		Operation:  operation,
		Schema:     filteredSchema,
		Locations:  s.Locations,
		IsBoundary: s.IsBoundary,
		Services:   s.Services,
	})
	if err != nil {
		traceErr(err)
		return s.interceptResponse(ctx, operation.Name, operationCtx.RawQuery, variables, graphql.ErrorResponse(ctx, err.Error()))
	}

	extensions := make(map[string]interface{})
	if debugInfo, ok := ctx.Value(DebugKey).(DebugInfo); ok {
		if debugInfo.Query {
			extensions["query"] = operation
		}
		if debugInfo.Variables {
			extensions["variables"] = variables
		}
		if debugInfo.Plan {
			extensions["plan"] = plan
		}
	}
	for name, value := range extensions {
		graphql.RegisterExtension(ctx, name, value)
	}

	executor := NewExecutor(s.coordinator, filteredSchema)
	executionStart := time.Now()
	resp := executor.Execute(ctx, plan)
	AddField(ctx, "execution.duration", time.Since(executionStart).String())

	var errs gqlerror.List
	for _, e := range resp.Errors {
		errs = append(errs, &gqlerror.Error{Message: e.Message})
	}
	if len(errs) > 0 {
		traceErr(errs)
		AddField(ctx, "errors", errs)
	}

	data, err := resp.Data.MarshalJSON()
	if err != nil {
		traceErr(err)
		return s.interceptResponse(ctx, operation.Name, operationCtx.RawQuery, variables, graphql.ErrorResponse(ctx, err.Error()))
	}

	return s.interceptResponse(ctx, operation.Name, operationCtx.RawQuery, variables, &graphql.Response{
		Data:   json.RawMessage(data),
		Errors: errs,
	})
}

func (s *ExecutableSchema) interceptResponse(ctx context.Context, operationName, rawQuery string, variables map[string]interface{}, response *graphql.Response) *graphql.Response {
	for _, plugin := range s.plugins {
		response = plugin.InterceptResponse(ctx, operationName, rawQuery, variables, response)
	}
	return response
}

// Schema returns the merged schema.
func (s *ExecutableSchema) Schema() *ast.Schema {
	return s.MergedSchema
}

// Complexity returns the query complexity (unimplemented).
func (s *ExecutableSchema) Complexity(typeName, fieldName string, childComplexity int, args map[string]interface{}) (int, bool) {
	return 0, false
}
