package credential

import "fmt"

type (
	// MalformedStoredValue is returned when a stored value does not follow
	// the <salt>.<key> layout. It indicates corrupted data, not a bad password.
	MalformedStoredValue struct {
		Reason string
	}
)

func (m MalformedStoredValue) Error() string {
	return fmt.Sprintf("malformed stored password value: %v", m.Reason)
}
