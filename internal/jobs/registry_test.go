package jobs

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StartReportCompleteLifecycle(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	status, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StateProcessing, status.Stage)

	r.ReportProgress(id, 42)
	status, _ = r.Get(id)
	assert.Equal(t, 42, status.Progress)

	r.Complete(id, 100)
	status, _ = r.Get(id)
	assert.Equal(t, StateCompleted, status.Stage)
	assert.Equal(t, 100, status.RecordsProcessed)
}

func TestRegistry_FailTransitionsToTerminal(t *testing.T) {
	r := NewRegistry()
	id := r.Start()

	r.Fail(id, errors.New("boom"))
	status, _ := r.Get(id)
	assert.Equal(t, StateFailed, status.Stage)
	assert.Equal(t, "boom", status.Err)
}

func TestRegistry_CompleteOnTerminalJobPanics(t *testing.T) {
	r := NewRegistry()
	id := r.Start()
	r.Complete(id, 10)

	assert.Panics(t, func() { r.Complete(id, 20) })
}

func TestRegistry_ReportProgressOnTerminalJobIsNoop(t *testing.T) {
	r := NewRegistry()
	id := r.Start()
	r.Complete(id, 10)

	assert.NotPanics(t, func() { r.ReportProgress(id, 99) })

	status, _ := r.Get(id)
	assert.Equal(t, StateCompleted, status.Stage)
}

func TestRegistry_CountByStage(t *testing.T) {
	r := NewRegistry()
	a := r.Start()
	b := r.Start()
	r.Start()
	r.Complete(a, 1)
	r.Fail(b, errors.New("x"))

	counts := r.CountByStage()
	assert.Equal(t, 1, counts[StateProcessing])
	assert.Equal(t, 1, counts[StateCompleted])
	assert.Equal(t, 1, counts[StateFailed])
}

func TestStatus_MarshalJSON_TagsByStage(t *testing.T) {
	completed := Status{Stage: StateCompleted, RecordsProcessed: 7}
	b, err := json.Marshal(completed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed","records_processed":7}`, string(b))

	failed := Status{Stage: StateFailed, Err: "bad input"}
	b, err = json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","error":"bad input"}`, string(b))

	processing := Status{Stage: StateProcessing, Progress: 5}
	b, err = json.Marshal(processing)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"processing","progress":5}`, string(b))
}
