package serialization_test

import (
	"testing"

	"github.com/stepflow/stepflow/pkg/models"
	"github.com/stepflow/stepflow/pkg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkpointPayload plays the role of a caller-defined value type with its own
// field layout that must survive the round trip exactly.
type checkpointPayload struct {
	Value int
}

func init() {
	serialization.Register(checkpointPayload{})
}

func TestGobSerializer_RoundTrip(t *testing.T) {
	t.Parallel()

	ec := models.NewExecutionContext()
	ec.PutString("1", "testString1")
	ec.PutString("2", "testString2")
	ec.PutInt64("3", 3)
	ec.PutFloat64("4", 4.4)
	ec.Put("5", checkpointPayload{Value: 7})
	ec.PutInt("6", 6)

	serializer := serialization.NewGobSerializer()

	data, err := serializer.Serialize(ec)
	require.NoError(t, err)

	clone, err := serializer.Deserialize(data)
	require.NoError(t, err)

	assert.True(t, clone.Equal(ec), "deserialized context must equal the original")
	assert.False(t, clone.IsDirty(), "a restored context starts clean")

	payload, err := models.Value[checkpointPayload](clone, "5")
	require.NoError(t, err)
	assert.Equal(t, 7, payload.Value)
}

func TestGobSerializer_RoundTripPreservesNumericKinds(t *testing.T) {
	t.Parallel()

	ec := models.NewExecutionContext()
	ec.PutInt64("long", 42)

	serializer := serialization.NewGobSerializer()

	data, err := serializer.Serialize(ec)
	require.NoError(t, err)

	clone, err := serializer.Deserialize(data)
	require.NoError(t, err)

	_, err = clone.GetFloat64("long")
	assert.True(t, models.IsTypeMismatch(err))
}

func TestGobSerializer_EmptyContext(t *testing.T) {
	t.Parallel()

	serializer := serialization.NewGobSerializer()

	data, err := serializer.Serialize(models.NewExecutionContext())
	require.NoError(t, err)

	clone, err := serializer.Deserialize(data)
	require.NoError(t, err)
	assert.True(t, clone.IsEmpty())
}

func TestGobSerializer_GarbageInput(t *testing.T) {
	t.Parallel()

	serializer := serialization.NewGobSerializer()

	_, err := serializer.Deserialize([]byte("not a gob stream"))
	assert.Error(t, err)
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	t.Parallel()

	ec := models.NewExecutionContext()
	ec.PutString("1", "testString1")
	ec.PutInt64("3", 3)
	ec.PutFloat64("4", 4.4)
	ec.PutInt("6", 6)
	ec.PutBool("7", false)

	serializer := serialization.NewJSONSerializer()

	data, err := serializer.Serialize(ec)
	require.NoError(t, err)

	clone, err := serializer.Deserialize(data)
	require.NoError(t, err)

	assert.True(t, clone.Equal(ec))
	assert.False(t, clone.IsDirty())

	l, err := clone.GetInt64("3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), l)
}
