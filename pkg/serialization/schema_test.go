package serialization_test

import (
	"testing"

	"github.com/stepflow/stepflow/pkg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		document    string
		expectError bool
	}{
		{
			name: "valid_document",
			document: `{
				"id": "exec-1",
				"job_name": "nightly-import",
				"step_name": "load-accounts",
				"status": "running",
				"context": "Zm9v",
				"created_at": "2025-01-01T00:00:00Z",
				"updated_at": "2025-01-01T00:00:00Z"
			}`,
			expectError: false,
		},
		{
			name: "missing_status",
			document: `{
				"id": "exec-1",
				"job_name": "nightly-import",
				"step_name": "load-accounts",
				"context": "Zm9v",
				"created_at": "2025-01-01T00:00:00Z",
				"updated_at": "2025-01-01T00:00:00Z"
			}`,
			expectError: true,
		},
		{
			name: "unknown_status",
			document: `{
				"id": "exec-1",
				"job_name": "nightly-import",
				"step_name": "load-accounts",
				"status": "paused",
				"context": "Zm9v",
				"created_at": "2025-01-01T00:00:00Z",
				"updated_at": "2025-01-01T00:00:00Z"
			}`,
			expectError: true,
		},
		{
			name:        "not_an_object",
			document:    `[1, 2, 3]`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := serialization.ValidateDocument([]byte(tt.document))
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, serialization.ErrInvalidDocument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
