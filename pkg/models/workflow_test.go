package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_SuccessRate(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		failures  int
		want      float64
	}{
		{name: "no attempts reports one half", successes: 0, failures: 0, want: 0.5},
		{name: "all successes", successes: 4, failures: 0, want: 1.0},
		{name: "all failures", successes: 0, failures: 2, want: 0.0},
		{name: "mixed", successes: 3, failures: 1, want: 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Workflow{SuccessCount: tt.successes, FailureCount: tt.failures}

			assert.InDelta(t, tt.want, w.SuccessRate(), 1e-9)
		})
	}
}

func TestWorkflow_OrderedSteps(t *testing.T) {
	w := &Workflow{
		Steps: []*Step{
			{ID: "c", Order: 3},
			{ID: "a", Order: 1},
			{ID: "b1", Order: 2},
			{ID: "b2", Order: 2},
		},
	}

	ordered := w.OrderedSteps()

	require.Len(t, ordered, 4)
	assert.Equal(t, "a", ordered[0].ID)
	// Equal orders keep their authored sequence.
	assert.Equal(t, "b1", ordered[1].ID)
	assert.Equal(t, "b2", ordered[2].ID)
	assert.Equal(t, "c", ordered[3].ID)

	// The workflow's own slice is untouched.
	assert.Equal(t, "c", w.Steps[0].ID)
}

func TestWorkflow_RecordOutcome_Success(t *testing.T) {
	now := time.Now()
	w := &Workflow{Confidence: 0.5}

	w.RecordOutcome(true, 0.8, now)

	assert.Equal(t, 1, w.SuccessCount)
	assert.Equal(t, 0, w.FailureCount)
	assert.InDelta(t, 0.6, w.Confidence, 1e-9)
	require.NotNil(t, w.LastSuccessAt)
	assert.Equal(t, now, *w.LastSuccessAt)
	assert.Equal(t, now, w.UpdatedAt)
}

func TestWorkflow_RecordOutcome_Failure(t *testing.T) {
	w := &Workflow{Confidence: 0.5}

	w.RecordOutcome(false, 0.8, time.Now())

	assert.Equal(t, 0, w.SuccessCount)
	assert.Equal(t, 1, w.FailureCount)
	assert.InDelta(t, 0.4, w.Confidence, 1e-9)
	assert.Nil(t, w.LastSuccessAt)
}

func TestWorkflow_RecordOutcome_ConvergesAndStaysBounded(t *testing.T) {
	w := &Workflow{Confidence: 0.1}

	for range 50 {
		w.RecordOutcome(true, 0.8, time.Now())
	}

	assert.Greater(t, w.Confidence, 0.95)
	assert.LessOrEqual(t, w.Confidence, 1.0)

	for range 50 {
		w.RecordOutcome(false, 0.8, time.Now())
	}

	assert.Less(t, w.Confidence, 0.05)
	assert.GreaterOrEqual(t, w.Confidence, 0.0)
}

func TestStep_Timeout(t *testing.T) {
	fallback := 10 * time.Second

	assert.Equal(t, fallback, (&Step{}).Timeout(fallback))
	assert.Equal(t, 250*time.Millisecond, (&Step{TimeoutMs: 250}).Timeout(fallback))
}

func TestStep_AdjustConfidence(t *testing.T) {
	s := &Step{Confidence: 0.9}

	s.AdjustConfidence(false, 0.8)
	assert.InDelta(t, 0.72, s.Confidence, 1e-9)

	s.AdjustConfidence(true, 0.8)
	assert.InDelta(t, 0.776, s.Confidence, 1e-9)
}

func TestValue_AsString(t *testing.T) {
	assert.Equal(t, "text", StringValue("text").AsString())
	assert.Equal(t, "3.5", NumberValue(3.5).AsString())
	assert.Equal(t, "true", BoolValue(true).AsString())
	assert.Equal(t, "aGk=", BytesValue([]byte("hi")).AsString())
}

func TestVariables_Merge(t *testing.T) {
	base := Variables{"a": StringValue("1"), "b": StringValue("2")}
	merged := base.Merge(Variables{"b": StringValue("override"), "c": StringValue("3")})

	assert.Equal(t, "1", merged["a"].AsString())
	assert.Equal(t, "override", merged["b"].AsString())
	assert.Equal(t, "3", merged["c"].AsString())

	// Merge never mutates the receiver.
	assert.Equal(t, "2", base["b"].AsString())
}
