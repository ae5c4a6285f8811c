// Package log defines the shared field and component names used for
// structured logging, so the same key never appears under two spellings.
package log

// Common field names.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"

	FieldUserID   = "user_id"
	FieldProduct  = "product"
	FieldQty      = "qty"
	FieldRate     = "rate"
	FieldAmount   = "amount"
	FieldWorkDate = "work_date"
	FieldEntryID  = "entry_id"
)

// Component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentWorkflow = "workflow"
	ComponentService  = "service"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
)
