package logging

import "context"

type contextKey string

const fieldsKey contextKey = "log_fields"

// Fields are attached to every record logged with a context carrying them.
type Fields struct {
	RequestID string
	Tool      string
	Transport string
	Component string
}

// WithFields merges f into the fields already on ctx. Non-empty values win.
func WithFields(ctx context.Context, f Fields) context.Context {
	merged := FieldsFrom(ctx)
	if f.RequestID != "" {
		merged.RequestID = f.RequestID
	}
	if f.Tool != "" {
		merged.Tool = f.Tool
	}
	if f.Transport != "" {
		merged.Transport = f.Transport
	}
	if f.Component != "" {
		merged.Component = f.Component
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

// FieldsFrom returns the fields on ctx, or the zero value.
func FieldsFrom(ctx context.Context) Fields {
	if f, ok := ctx.Value(fieldsKey).(Fields); ok {
		return f
	}
	return Fields{}
}
