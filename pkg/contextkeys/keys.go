package contextkeys

type contextKey string

const (
	OperatorIDKey   contextKey = "OperatorID"
	OperatorNameKey contextKey = "OperatorName"
	RequestIDKey    contextKey = "RequestID"
)
