// Package serialization provides the pluggable byte-level codecs an execution
// context delegates to when it crosses a checkpoint boundary.
package serialization

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/stepflow/stepflow/pkg/models"
)

// Serializer turns an execution context into bytes and back. Implementations
// must reproduce a context equal to the original, with a clean dirty flag, since
// restoring establishes the new baseline.
type Serializer interface {
	Serialize(ec *models.ExecutionContext) ([]byte, error)
	Deserialize(data []byte) (*models.ExecutionContext, error)
}

func init() {
	// Composite entry values that routinely end up in a context. Callers
	// register their own struct types with Register.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register([]string{})
}

// Register makes a caller-defined entry type known to the gob serializer. It
// must be called before serializing or deserializing contexts holding that type.
func Register(value any) {
	gob.Register(value)
}

// GobSerializer is the default serializer. It preserves every entry's concrete
// Go type, including registered caller-defined structs, across the round trip.
type GobSerializer struct{}

// NewGobSerializer creates the default gob-based serializer.
func NewGobSerializer() *GobSerializer {
	return &GobSerializer{}
}

func (s *GobSerializer) Serialize(ec *models.ExecutionContext) ([]byte, error) {
	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(ec.Entries())
	if err != nil {
		return nil, fmt.Errorf("failed to gob-encode execution context: %w", err)
	}

	return buf.Bytes(), nil
}

func (s *GobSerializer) Deserialize(data []byte) (*models.ExecutionContext, error) {
	var entries map[string]any

	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries)
	if err != nil {
		return nil, fmt.Errorf("failed to gob-decode execution context: %w", err)
	}

	return restore(entries), nil
}

// JSONSerializer emits the context's type-tagged JSON envelope. It is exact for
// string, bool and the tagged numeric kinds; arbitrary structs decode into
// generic maps, so prefer GobSerializer when struct identity matters.
type JSONSerializer struct{}

// NewJSONSerializer creates a JSON envelope serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Serialize(ec *models.ExecutionContext) ([]byte, error) {
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("failed to json-encode execution context: %w", err)
	}

	return data, nil
}

func (s *JSONSerializer) Deserialize(data []byte) (*models.ExecutionContext, error) {
	ec := models.NewExecutionContext()

	err := json.Unmarshal(data, ec)
	if err != nil {
		return nil, fmt.Errorf("failed to json-decode execution context: %w", err)
	}

	return ec, nil
}

func restore(entries map[string]any) *models.ExecutionContext {
	ec := models.NewExecutionContext()
	for key, value := range entries {
		ec.Put(key, value)
	}

	ec.ClearDirtyFlag()

	return ec
}
