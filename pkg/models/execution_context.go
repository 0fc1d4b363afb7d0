// Package models defines the core domain models for batch execution checkpointing.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrKeyNotFound indicates a typed accessor was called for a key that is not present.
var ErrKeyNotFound = errors.New("key not found")

// TypeMismatchError indicates a stored value's dynamic type does not match the
// type requested by a typed accessor. The value is left untouched.
type TypeMismatchError struct {
	Key  string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("value for key %q is %s, not %s", e.Key, e.Got, e.Want)
}

// IsTypeMismatch checks if an error indicates a typed accessor mismatch.
func IsTypeMismatch(err error) bool {
	var target *TypeMismatchError

	return errors.As(err, &target)
}

// ExecutionContext holds the mutable state of a single unit of work as named
// values of heterogeneous type, and tracks whether that state has changed since
// the last checkpoint acknowledgment.
//
// An ExecutionContext is owned by exactly one step execution and is not safe for
// concurrent use. Callers that hand state across goroutines should pass copies
// taken with NewExecutionContextFrom.
type ExecutionContext struct {
	entries map[string]any
	dirty   bool
}

// NewExecutionContext creates an empty, clean execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{entries: make(map[string]any)}
}

// NewExecutionContextFrom creates an execution context initialized with a copy of
// another context's entries. A nil source behaves like NewExecutionContext. The
// copy is the new baseline, so the returned context is clean regardless of the
// source's dirty state.
func NewExecutionContextFrom(other *ExecutionContext) *ExecutionContext {
	ec := NewExecutionContext()
	if other == nil {
		return ec
	}

	for key, value := range other.entries {
		ec.entries[key] = deepCopyValue(value)
	}

	return ec
}

// Put stores value under key. A nil value removes the key instead; removing an
// absent key is a silent no-op. The context becomes dirty only when the mapping
// actually changes, so re-putting an equal value after ClearDirtyFlag leaves the
// context clean.
func (ec *ExecutionContext) Put(key string, value any) {
	if value == nil {
		ec.Remove(key)

		return
	}

	previous, present := ec.entries[key]
	ec.entries[key] = value
	ec.dirty = ec.dirty || !present || !reflect.DeepEqual(previous, value)
}

// Remove deletes key from the context, dirtying it if the key was present.
func (ec *ExecutionContext) Remove(key string) {
	if _, present := ec.entries[key]; !present {
		return
	}

	delete(ec.entries, key)
	ec.dirty = true
}

// PutString stores a string value under key.
func (ec *ExecutionContext) PutString(key, value string) {
	ec.Put(key, value)
}

// PutInt stores an int value under key.
func (ec *ExecutionContext) PutInt(key string, value int) {
	ec.Put(key, value)
}

// PutInt64 stores an int64 value under key.
func (ec *ExecutionContext) PutInt64(key string, value int64) {
	ec.Put(key, value)
}

// PutFloat64 stores a float64 value under key.
func (ec *ExecutionContext) PutFloat64(key string, value float64) {
	ec.Put(key, value)
}

// PutBool stores a bool value under key.
func (ec *ExecutionContext) PutBool(key string, value bool) {
	ec.Put(key, value)
}

// Get returns the value stored under key without type checking, or nil when the
// key is absent.
func (ec *ExecutionContext) Get(key string) any {
	return ec.entries[key]
}

// Value returns the value stored under key asserted to T. It fails with
// ErrKeyNotFound when the key is absent and with *TypeMismatchError when the
// stored value's dynamic type is not T. Types are never coerced: an int64 read
// as float64 is a mismatch.
func Value[T any](ec *ExecutionContext, key string) (T, error) {
	var zero T

	raw, present := ec.entries[key]
	if !present {
		return zero, fmt.Errorf("%q: %w", key, ErrKeyNotFound)
	}

	typed, ok := raw.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Key:  key,
			Want: reflect.TypeFor[T]().String(),
			Got:  fmt.Sprintf("%T", raw),
		}
	}

	return typed, nil
}

// ValueOr behaves like Value but returns fallback when the key is absent. The
// fallback is returned as-is, without any type check against the stored state.
func ValueOr[T any](ec *ExecutionContext, key string, fallback T) (T, error) {
	if _, present := ec.entries[key]; !present {
		return fallback, nil
	}

	return Value[T](ec, key)
}

// GetString returns the string stored under key.
func (ec *ExecutionContext) GetString(key string) (string, error) {
	return Value[string](ec, key)
}

// GetStringOr returns the string stored under key, or fallback when absent.
func (ec *ExecutionContext) GetStringOr(key, fallback string) (string, error) {
	return ValueOr(ec, key, fallback)
}

// GetInt returns the int stored under key.
func (ec *ExecutionContext) GetInt(key string) (int, error) {
	return Value[int](ec, key)
}

// GetIntOr returns the int stored under key, or fallback when absent.
func (ec *ExecutionContext) GetIntOr(key string, fallback int) (int, error) {
	return ValueOr(ec, key, fallback)
}

// GetInt64 returns the int64 stored under key.
func (ec *ExecutionContext) GetInt64(key string) (int64, error) {
	return Value[int64](ec, key)
}

// GetInt64Or returns the int64 stored under key, or fallback when absent.
func (ec *ExecutionContext) GetInt64Or(key string, fallback int64) (int64, error) {
	return ValueOr(ec, key, fallback)
}

// GetFloat64 returns the float64 stored under key.
func (ec *ExecutionContext) GetFloat64(key string) (float64, error) {
	return Value[float64](ec, key)
}

// GetFloat64Or returns the float64 stored under key, or fallback when absent.
func (ec *ExecutionContext) GetFloat64Or(key string, fallback float64) (float64, error) {
	return ValueOr(ec, key, fallback)
}

// GetBool returns the bool stored under key.
func (ec *ExecutionContext) GetBool(key string) (bool, error) {
	return Value[bool](ec, key)
}

// GetBoolOr returns the bool stored under key, or fallback when absent.
func (ec *ExecutionContext) GetBoolOr(key string, fallback bool) (bool, error) {
	return ValueOr(ec, key, fallback)
}

// ContainsKey reports whether key is present in the context.
func (ec *ExecutionContext) ContainsKey(key string) bool {
	_, present := ec.entries[key]

	return present
}

// ContainsValue reports whether any entry equals value. Equality is structural,
// not identity.
func (ec *ExecutionContext) ContainsValue(value any) bool {
	for _, stored := range ec.entries {
		if reflect.DeepEqual(stored, value) {
			return true
		}
	}

	return false
}

// IsEmpty reports whether the context has no entries.
func (ec *ExecutionContext) IsEmpty() bool {
	return len(ec.entries) == 0
}

// Len returns the number of entries.
func (ec *ExecutionContext) Len() int {
	return len(ec.entries)
}

// IsDirty reports whether the context has changed since the last ClearDirtyFlag.
func (ec *ExecutionContext) IsDirty() bool {
	return ec.dirty
}

// ClearDirtyFlag acknowledges the current state as checkpointed. Entries are not
// altered.
func (ec *ExecutionContext) ClearDirtyFlag() {
	ec.dirty = false
}

// Entries returns a copy of the current mapping.
func (ec *ExecutionContext) Entries() map[string]any {
	entries := make(map[string]any, len(ec.entries))
	for key, value := range ec.entries {
		entries[key] = value
	}

	return entries
}

// Equal reports whether two contexts hold structurally equal entries. The dirty
// flag is not part of equality. A nil context equals an empty one.
func (ec *ExecutionContext) Equal(other *ExecutionContext) bool {
	if other == nil {
		return ec.IsEmpty()
	}

	if len(ec.entries) != len(other.entries) {
		return false
	}

	for key, value := range ec.entries {
		otherValue, present := other.entries[key]
		if !present || !reflect.DeepEqual(value, otherValue) {
			return false
		}
	}

	return true
}

// typedEntry is the JSON envelope for a single entry. The kind tag keeps Go's
// numeric types distinct across a round trip, which plain JSON would collapse
// into float64.
type typedEntry struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

const (
	kindString  = "string"
	kindInt     = "int"
	kindInt64   = "int64"
	kindFloat64 = "float64"
	kindBool    = "bool"
	kindJSON    = "json"
)

// MarshalJSON encodes the entries as a type-tagged envelope. Values outside the
// tagged primitive kinds are carried as raw JSON and decode into generic maps
// and slices; use the gob serializer when struct identity must survive.
func (ec *ExecutionContext) MarshalJSON() ([]byte, error) {
	envelope := make(map[string]typedEntry, len(ec.entries))

	for key, value := range ec.entries {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entry %q: %w", key, err)
		}

		envelope[key] = typedEntry{Kind: kindOf(value), Value: raw}
	}

	return json.Marshal(envelope)
}

// UnmarshalJSON decodes a type-tagged envelope produced by MarshalJSON. The
// decoded context is clean.
func (ec *ExecutionContext) UnmarshalJSON(data []byte) error {
	var envelope map[string]typedEntry

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		return fmt.Errorf("failed to unmarshal execution context: %w", err)
	}

	ec.entries = make(map[string]any, len(envelope))
	ec.dirty = false

	for key, entry := range envelope {
		value, err := decodeTypedEntry(entry)
		if err != nil {
			return fmt.Errorf("failed to unmarshal entry %q: %w", key, err)
		}

		ec.entries[key] = value
	}

	return nil
}

func kindOf(value any) string {
	switch value.(type) {
	case string:
		return kindString
	case int:
		return kindInt
	case int64:
		return kindInt64
	case float64:
		return kindFloat64
	case bool:
		return kindBool
	default:
		return kindJSON
	}
}

func decodeTypedEntry(entry typedEntry) (any, error) {
	switch entry.Kind {
	case kindString:
		var v string
		err := json.Unmarshal(entry.Value, &v)

		return v, err
	case kindInt:
		var v int
		err := json.Unmarshal(entry.Value, &v)

		return v, err
	case kindInt64:
		var v int64
		err := json.Unmarshal(entry.Value, &v)

		return v, err
	case kindFloat64:
		var v float64
		err := json.Unmarshal(entry.Value, &v)

		return v, err
	case kindBool:
		var v bool
		err := json.Unmarshal(entry.Value, &v)

		return v, err
	case kindJSON:
		var v any
		err := json.Unmarshal(entry.Value, &v)

		return v, err
	default:
		return nil, fmt.Errorf("unknown entry kind %q", entry.Kind)
	}
}

// deepCopyValue copies nested generic maps and slices so copy-constructed
// contexts never alias the source's mutable containers. Other values, including
// caller-defined structs, are copied by assignment.
func deepCopyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, nested := range typed {
			copied[key] = deepCopyValue(nested)
		}

		return copied
	case []any:
		copied := make([]any, len(typed))
		for i, nested := range typed {
			copied[i] = deepCopyValue(nested)
		}

		return copied
	default:
		return value
	}
}
