package logging

const (
	// FieldComponent names the subsystem that produced a record.
	FieldComponent = "component"
	// FieldUnit identifies the sensor, drive, fan or group a record concerns.
	FieldUnit = "unit"
	// FieldEventType classifies a record for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert marks records that deserve attention in summaries.
	FieldAlert = "alert"
	FieldRunID = "run_id"
	FieldTick  = "tick"
)
