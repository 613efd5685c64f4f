package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the index build job ID
	FieldJobID = "job_id"

	// FieldCompareID is the comparison request ID
	FieldCompareID = "compare_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldCollection is the vector collection name
	FieldCollection = "collection"

	// FieldModel is the embedding model identifier
	FieldModel = "model"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
