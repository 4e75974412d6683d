package modelgateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_ValidateObject_MissingRequiredField(t *testing.T) {
	schema := Schema{
		Name: "evaluation",
		Required: []Field{
			{Name: "score", Type: FieldInt},
			{Name: "feedback", Type: FieldString},
		},
	}
	err := schema.Validate([]byte(`{"score": 80}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feedback")
}

func TestSchema_ValidateObject_WrongType(t *testing.T) {
	schema := Schema{
		Name:     "evaluation",
		Required: []Field{{Name: "score", Type: FieldInt}},
	}
	err := schema.Validate([]byte(`{"score": "eighty"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score")
}

func TestSchema_ValidateObject_Valid(t *testing.T) {
	schema := Schema{
		Name: "evaluation",
		Required: []Field{
			{Name: "score", Type: FieldInt},
			{Name: "feedback", Type: FieldString},
		},
	}
	err := schema.Validate([]byte(`{"score": 80, "feedback": "good"}`))
	require.NoError(t, err)
}

func TestSchema_ValidateArray_EachItemChecked(t *testing.T) {
	schema := Schema{
		Name:    "question_batch",
		IsArray: true,
		Required: []Field{
			{Name: "body", Type: FieldString},
		},
	}
	err := schema.Validate([]byte(`[{"body": "question 1"}, {"body": 2}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 1")
}

func TestSchema_ValidateArray_NotAnArray(t *testing.T) {
	schema := Schema{Name: "question_batch", IsArray: true}
	err := schema.Validate([]byte(`{"body": "not an array"}`))
	require.Error(t, err)
}

func TestExtractJSON_StripsMarkdownFence(t *testing.T) {
	raw := extractJSON("```json\n{\"score\": 80}\n```")
	assert.Equal(t, `{"score": 80}`, string(raw))
}

func TestExtractJSON_PassesThroughBareJSON(t *testing.T) {
	raw := extractJSON(`{"score": 80}`)
	assert.Equal(t, `{"score": 80}`, string(raw))
}

func TestBackoffWithFullJitter_NeverExceedsCap(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		wait := backoffWithFullJitter(attempt, 200, 5000)
		assert.LessOrEqual(t, wait, 5000*time.Millisecond)
		assert.GreaterOrEqual(t, wait, time.Duration(0))
	}
}

func TestBackoffWithFullJitter_DefaultsAppliedWhenUnset(t *testing.T) {
	wait := backoffWithFullJitter(0, 0, 0)
	assert.LessOrEqual(t, wait, 5000*time.Millisecond)
}

func TestSleepOrDone_ReturnsNilAfterDuration(t *testing.T) {
	err := sleepOrDone(context.Background(), time.Millisecond)
	require.NoError(t, err)
}

func TestSleepOrDone_ReturnsContextErrorWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepOrDone(ctx, time.Second)
	require.Error(t, err)
}

func TestGatewayClient_AcquireRespectsConcurrencyCap(t *testing.T) {
	c := &gatewayClient{sem: make(chan struct{}, 2)}
	ctx := context.Background()

	require.NoError(t, c.acquire(ctx))
	require.NoError(t, c.acquire(ctx))

	blockedCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := c.acquire(blockedCtx)
	require.Error(t, err, "a third acquire should block because the cap is 2")

	c.release()
	require.NoError(t, c.acquire(ctx), "releasing one slot should free capacity for another acquire")
}
