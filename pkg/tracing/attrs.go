package tracing

import "go.opentelemetry.io/otel/attribute"

// Semantic attribute keys used across the server. Tool handlers and the
// backend client share these so traces stay queryable by one vocabulary.
const (
	KeyOperationName       = attribute.Key("operation.name")
	KeyOperationDurationMs = attribute.Key("operation.duration_ms")
	KeyOperationStatus     = attribute.Key("operation.status")

	KeyServiceName = attribute.Key("service.name")
	KeyErrorKind   = attribute.Key("error.kind")

	KeyTaskID    = attribute.Key("task.id")
	KeyProjectID = attribute.Key("project.id")
	KeySprintID  = attribute.Key("sprint.id")

	KeyHTTPMethod     = attribute.Key("http.method")
	KeyHTTPURL        = attribute.Key("http.url")
	KeyHTTPStatusCode = attribute.Key("http.status_code")

	KeyDBSystem    = attribute.Key("db.system")
	KeyDBOperation = attribute.Key("db.operation")
)

// Operation names the traced operation.
func Operation(name string) attribute.KeyValue {
	return KeyOperationName.String(name)
}

// Task tags a span with the task it touches.
func Task(id string) attribute.KeyValue {
	return KeyTaskID.String(id)
}

// Project tags a span with the project it touches.
func Project(id string) attribute.KeyValue {
	return KeyProjectID.String(id)
}

// Sprint tags a span with the sprint it touches.
func Sprint(id string) attribute.KeyValue {
	return KeySprintID.String(id)
}
