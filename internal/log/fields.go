package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDuration    = "duration_ms"
	FieldTrigger     = "trigger"
	FieldPeriodKind  = "period_kind"
	FieldWindowStart = "window_start"
	FieldWindowEnd   = "window_end"
	FieldBudgetID    = "budget_id"
	FieldStatus      = "status"
	FieldCreated     = "windows_created"
	FieldRequestedBy = "requested_by"
	FieldGroupBy     = "group_by"
	FieldExportRef   = "export_ref"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
	ComponentCLI    = "cli"
)

// Operations defines standard operation names
const (
	OpRollover = "rollover"
	OpSeed     = "seed"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Rollover triggers
const (
	TriggerStartup = "startup"
	TriggerTicker  = "ticker"
	TriggerMessage = "message"
	TriggerCLI     = "cli"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRollover adds the outcome of one rollover run
func (f LogFields) WithRollover(trigger, status string, created int, durationMs int64) LogFields {
	f[FieldTrigger] = trigger
	f[FieldStatus] = status
	f[FieldCreated] = created
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
