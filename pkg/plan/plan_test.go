package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/errdefs"
)

func newTestPlan(t *testing.T) *Plan {
	t.Helper()
	p, err := New("ship it", []string{"research", "build", "verify"}, []string{
		"gather requirements",
		"implement the feature",
		"run the test suite",
	})
	require.NoError(t, err)
	return p
}

func TestNewValidatesShape(t *testing.T) {
	_, err := New("t", nil, nil)
	assert.True(t, errdefs.IsState(err))

	_, err = New("t", []string{"a", "b"}, []string{"only one"})
	assert.True(t, errdefs.IsState(err))
}

func TestNewStartsNotStarted(t *testing.T) {
	p := newTestPlan(t)

	payload := p.Payload()
	assert.Equal(t, []string{"not_started", "not_started", "not_started"}, payload.StepStatus)
	assert.Equal(t, 0, payload.CurrentIndex)
	assert.False(t, p.Done())
	assert.False(t, p.Blocked())
}

func TestHappyPathAdvancesCursor(t *testing.T) {
	p := newTestPlan(t)

	require.NoError(t, p.Start(0))
	assert.Equal(t, 0, p.CurrentIndex())

	require.NoError(t, p.Complete(0, "requirements noted"))
	assert.Equal(t, 1, p.CurrentIndex())

	require.NoError(t, p.Start(1))
	require.NoError(t, p.Complete(1, ""))
	require.NoError(t, p.Start(2))
	require.NoError(t, p.Complete(2, ""))

	assert.Equal(t, 3, p.CurrentIndex())
	assert.True(t, p.Done())

	_, ok := p.NextPending()
	assert.False(t, ok)
}

func TestStatusesNeverRegress(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))
	require.NoError(t, p.Complete(0, ""))

	assert.True(t, errdefs.IsState(p.Start(0)))
	assert.True(t, errdefs.IsState(p.Mark(0, StatusNotStarted, "")))
	assert.True(t, errdefs.IsState(p.Block(0, "too late")))
}

func TestCompletionRequiresInProgress(t *testing.T) {
	p := newTestPlan(t)

	assert.True(t, errdefs.IsState(p.Complete(1, "")))
	assert.True(t, errdefs.IsState(p.Block(1, "")))
}

func TestSingleStepInProgress(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))

	err := p.Start(1)
	assert.True(t, errdefs.IsState(err))
}

func TestMarkSameStatusIsNoop(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))
	require.NoError(t, p.Mark(0, StatusInProgress, "still going"))

	assert.Equal(t, StatusInProgress, p.StatusAt(0))
}

func TestBlockedStopsProgress(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))
	require.NoError(t, p.Block(0, "missing credentials"))

	assert.True(t, p.Blocked())
	assert.False(t, p.Done())

	idx, ok := p.NextPending()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestUpdateKeepsPositionalStatuses(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))
	require.NoError(t, p.Complete(0, "done early"))

	err := p.Update("", []string{"research", "build", "verify", "release"}, []string{
		"gather requirements",
		"implement the feature differently",
		"run the test suite",
		"tag and publish",
	})
	require.NoError(t, err)

	payload := p.Payload()
	assert.Equal(t, []string{"completed", "not_started", "not_started", "not_started"}, payload.StepStatus)
	assert.Equal(t, 1, payload.CurrentIndex)
	assert.Equal(t, "ship it", p.Title())
}

func TestUpdateClampsCursorOnShrink(t *testing.T) {
	p := newTestPlan(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Start(i))
		require.NoError(t, p.Complete(i, ""))
	}
	require.Equal(t, 3, p.CurrentIndex())

	require.NoError(t, p.Update("smaller", []string{"one"}, []string{"only step"}))
	assert.Equal(t, 1, p.CurrentIndex())
}

func TestFinishCompletesPendingSteps(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))
	require.NoError(t, p.Block(0, "stuck"))

	p.Finish()

	payload := p.Payload()
	assert.Equal(t, []string{"blocked", "completed", "completed"}, payload.StepStatus)
	assert.Equal(t, 3, payload.CurrentIndex)
}

func TestPayloadIsDetached(t *testing.T) {
	p := newTestPlan(t)
	payload := p.Payload()
	payload.Stages[0] = "tampered"
	payload.StepStatus[0] = "completed"

	fresh := p.Payload()
	assert.Equal(t, "research", fresh.Stages[0])
	assert.Equal(t, "not_started", fresh.StepStatus[0])
}

func TestRender(t *testing.T) {
	p := newTestPlan(t)
	require.NoError(t, p.Start(0))
	require.NoError(t, p.Complete(0, "sources collected"))
	require.NoError(t, p.Start(1))

	out := p.Render()
	assert.Contains(t, out, "Plan: ship it")
	assert.Contains(t, out, "Progress: 1/3 steps completed")
	assert.Contains(t, out, "[x] 1. research: gather requirements (sources collected)")
	assert.Contains(t, out, "[>] 2. build: implement the feature")
	assert.Contains(t, out, "[ ] 3. verify: run the test suite")
}

func TestStepLookup(t *testing.T) {
	p := newTestPlan(t)

	stage, step, err := p.Step(1)
	require.NoError(t, err)
	assert.Equal(t, "build", stage)
	assert.Equal(t, "implement the feature", step)

	_, _, err = p.Step(7)
	assert.True(t, errdefs.IsState(err))
}
