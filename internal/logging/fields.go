package logging

import (
	"time"

	"go.uber.org/zap"
)

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
// This is a shorthand for creating Field{Key: k, Value: v}.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// zapFields converts fields for the zap backend.
func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// Common field constructors for frequently used fields.

// ConversationID creates a conversation ID field.
func ConversationID(id string) Field {
	return F("conversation", id)
}

// RequestID creates a request ID field.
func RequestID(id string) Field {
	return F("request_id", id)
}

// Project creates a project name field.
func Project(name string) Field {
	return F("project", name)
}

// Command creates a chat command field.
func Command(name string) Field {
	return F("command", name)
}

// Duration creates a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return F("duration_ms", d.Milliseconds())
}

// DurationSince creates a duration field from a start time.
func DurationSince(start time.Time) Field {
	return Duration(time.Since(start))
}

// Cost creates a USD cost field.
func Cost(usd float64) Field {
	return F("cost_usd", usd)
}

// Err creates an error field.
func Err(err error) Field {
	return F("error", err)
}
