package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

// FieldError is one violated constraint, addressed by its JSON field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated constraint of a rejected write, not only the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ByField groups messages per field, in field order.
func (e *ValidationError) ByField() map[string][]string {
	out := make(map[string][]string)
	for _, f := range e.Fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// err returns nil when nothing was recorded.
func (e *ValidationError) err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	sort.SliceStable(e.Fields, func(i, j int) bool { return e.Fields[i].Field < e.Fields[j].Field })
	return e
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

type DuplicateItemError struct {
	SlotID  string
	AssetID string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("asset %q is already in slot %q", e.AssetID, e.SlotID)
}

// ConflictError means a concurrent change invalidated the operation's precondition.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// InvalidOrderError is re-exported so callers only need this package.
type InvalidOrderError = ordering.InvalidOrderError

func slotNotFound(id string) error  { return &NotFoundError{Kind: "slot", ID: id} }
func itemNotFound(id string) error  { return &NotFoundError{Kind: "item", ID: id} }
func assetNotFound(id string) error { return &NotFoundError{Kind: "asset", ID: id} }
