package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"

	FieldOperationID   = "operation_id"
	FieldOperationKind = "operation_kind"
	FieldAmountCents   = "amount_cents"
	FieldWalletID      = "wallet_id"
	FieldCategoryID    = "category_id"
	FieldGoalID        = "goal_id"
	FieldWindow        = "window"
	FieldPageCount     = "page_count"
	FieldRemoteRef     = "remote_ref"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentFeed      = "feed"
	ComponentOperation = "operation"
	ComponentGoal      = "goal"
	ComponentStorage   = "storage"
	ComponentPrefs     = "prefs"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRemote    = "remote"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpSync     = "sync"
	OpRefresh  = "refresh"
	OpLoadMore = "load_more"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder for structured log fields.
type LogFields map[string]any

// NewFields creates a new LogFields instance.
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds the component field.
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds the request ID field.
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds the error field.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds the operation field.
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds the fields describing one financial operation record.
func (f LogFields) WithRecord(id string, kind string, amountCents int64, walletID string) LogFields {
	f[FieldOperationID] = id
	f[FieldOperationKind] = kind
	f[FieldAmountCents] = amountCents
	f[FieldWalletID] = walletID
	return f
}

// ToSlice converts LogFields to a slice for slog.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
