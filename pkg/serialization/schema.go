package serialization

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument indicates a stored step-execution document failed schema
// validation and must not be restored.
var ErrInvalidDocument = errors.New("invalid step execution document")

// stepExecutionSchema describes the JSON document the file repository writes per
// step execution. The context is opaque serializer output, base64-encoded.
const stepExecutionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "job_name", "step_name", "status", "context", "created_at", "updated_at"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"job_name": {"type": "string", "minLength": 1},
		"step_name": {"type": "string", "minLength": 1},
		"status": {"type": "string", "enum": ["running", "completed", "failed"]},
		"context": {"type": "string"},
		"exit_message": {"type": "string"},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"},
		"completed_at": {"type": ["string", "null"]}
	},
	"additionalProperties": false
}`

// ValidateDocument checks a serialized step-execution document against the
// schema before a repository accepts it.
func ValidateDocument(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(stepExecutionSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate step execution document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, description := range result.Errors() {
		details = append(details, description.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(details, "; "))
}
