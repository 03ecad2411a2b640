package port

type MetricsRecorder interface {
	// RecordOperation counts one store operation by action and outcome
	RecordOperation(action string, outcome string)

	// RecordQuantity adds moved or received units for an action
	RecordQuantity(action string, quantity int)
}
