package apperr

type Kind string

type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to surface to the caller
	Fields    map[string]string // validation field errors (optional)
	Err       error             // internal cause (for logs)
}
