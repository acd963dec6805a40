package observability

import (
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ServiceInfo identifies the running service to the OTEL providers.
type ServiceInfo struct {
	Name         string
	Version      string
	Environment  string
	OTLPEndpoint string // Empty string disables OTLP export
}

// newResource builds the resource from service attributes only; merging
// resource.Default() risks schema URL conflicts.
func newResource(info ServiceInfo) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(info.Name),
		semconv.ServiceVersion(info.Version),
		semconv.DeploymentEnvironment(info.Environment),
	)
}
