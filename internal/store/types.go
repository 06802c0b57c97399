package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"time"
)

type Document struct {
	ID     string
	Fields map[string]any
}

// Field returns the value stored under name and whether it is set.
func (d Document) Field(name string) (any, bool) {
	if d.Fields == nil {
		return nil, false
	}
	value, ok := d.Fields[name]
	return value, ok
}

type FilterOp string

const OpEqual FilterOp = "=="

type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
)

// Write is one operation of a batch. A create with an empty ID gets a
// generated one.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Fields     map[string]any
}

type serverTimestamp struct{}

// ServerTimestamp may be used as a field value in Create, Update and
// BatchCommit; the adapter replaces it with its own clock reading.
var ServerTimestamp any = serverTimestamp{}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateFilters rejects filters the adapters cannot evaluate. Values must
// be scalars; the adapters disagree on how composite values compare.
func ValidateFilters(filters []Filter) error {
	for i, filter := range filters {
		if err := ValidateFieldName(filter.Field); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
		if filter.Op != OpEqual {
			return fmt.Errorf("filter %d: unsupported operator %q: %w", i, filter.Op, ErrInvalidArgument)
		}
		if filter.Value == nil {
			return fmt.Errorf("filter %d: nil value for %s: %w", i, filter.Field, ErrInvalidArgument)
		}
		switch reflect.ValueOf(filter.Value).Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Errorf("filter %d: %s must be compared to a scalar, got %T: %w", i, filter.Field, filter.Value, ErrInvalidArgument)
		}
	}
	return nil
}

func ValidateFieldName(name string) error {
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("invalid field name %q: %w", name, ErrInvalidArgument)
	}
	return nil
}

// ValidateWrites checks a batch before any adapter touches storage.
func ValidateWrites(writes []Write) error {
	for i, w := range writes {
		if w.Collection == "" {
			return fmt.Errorf("write %d: collection is required: %w", i, ErrInvalidArgument)
		}
		switch w.Kind {
		case WriteCreate:
		case WriteUpdate:
			if w.ID == "" {
				return fmt.Errorf("write %d: update requires an id: %w", i, ErrInvalidArgument)
			}
		default:
			return fmt.Errorf("write %d: unknown kind %q: %w", i, w.Kind, ErrInvalidArgument)
		}
	}
	return nil
}

// ResolveFields returns a copy of fields with ServerTimestamp replaced by now.
func ResolveFields(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if _, ok := value.(serverTimestamp); ok {
			out[key] = now.UTC()
			continue
		}
		out[key] = value
	}
	return out
}

// EncodeFields serialises fields the way every adapter persists them.
func EncodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w: %w", ErrInvalidArgument, err)
	}
	return payload, nil
}

func DecodeFields(payload []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(payload) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	return fields, nil
}
