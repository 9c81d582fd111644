package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunit-dev/hunit/registry"
	"github.com/hunit-dev/hunit/result"
	"github.com/hunit-dev/hunit/types"
)

func TestRunnerRecordsOutcomes(t *testing.T) {
	reg := schedulerRegistry(t)
	agg := result.NewAggregate(result.Options{TotalTests: 3})
	consumer := &collectingConsumer{}
	r := NewRunner(reg, agg, consumer, nil)

	require.NoError(t, r.Run(context.Background(), []string{"pkg.TestOne", "pkg.TestTwo", "pkg.TestThree"}))

	assert.Equal(t, 3, agg.TestsRun())
	assert.Equal(t, 2, agg.Counters().Get(types.StatusPass))
	assert.Equal(t, 1, agg.Counters().Get(types.StatusFail))
	assert.Contains(t, agg.ErrorSet(), "pkg.TestTwo")
	assert.Contains(t, agg.SuccessSet(), "pkg.TestOne")
	assert.Contains(t, agg.SuccessSet(), "pkg.TestThree")
	assert.Equal(t, []string{"pkg.TestOne", "pkg.TestTwo", "pkg.TestThree"}, consumer.tests())
}

func TestRunnerFailfastSkipsRemaining(t *testing.T) {
	reg := schedulerRegistry(t)
	agg := result.NewAggregate(result.Options{TotalTests: 3, Failfast: true})
	r := NewRunner(reg, agg, nil, nil)

	require.NoError(t, r.Run(context.Background(), []string{"pkg.TestOne", "pkg.TestTwo", "pkg.TestThree"}))

	assert.Equal(t, 2, agg.TestsRun())
	assert.Equal(t, 1, agg.Counters().Get(types.StatusFail))
	assert.NotContains(t, agg.SuccessSet(), "pkg.TestThree")
}

func TestRunnerUnknownTestIsFatal(t *testing.T) {
	agg := result.NewAggregate(result.Options{TotalTests: 1})
	r := NewRunner(registry.New(nil), agg, nil, nil)

	err := r.Run(context.Background(), []string{"pkg.TestMissing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkg.TestMissing")
}

func TestRunnerHonorsExternalStop(t *testing.T) {
	reg := schedulerRegistry(t)
	agg := result.NewAggregate(result.Options{TotalTests: 3})
	agg.Stop()
	r := NewRunner(reg, agg, nil, nil)

	require.NoError(t, r.Run(context.Background(), []string{"pkg.TestOne"}))
	assert.Equal(t, 0, agg.TestsRun())
}

// The scheduler at one worker and the single-process runner must agree on
// everything observable: counters, sets and tests-run.
func TestSingleWorkerMatchesSingleProcess(t *testing.T) {
	tests := []string{"pkg.TestOne", "pkg.TestTwo", "pkg.TestThree"}

	local := result.NewAggregate(result.Options{TotalTests: len(tests)})
	require.NoError(t, NewRunner(schedulerRegistry(t), local, nil, nil).
		Run(context.Background(), tests))

	remote := result.NewAggregate(result.Options{TotalTests: len(tests)})
	sched := NewScheduler(remote, SchedulerOptions{
		Jobs:  1,
		Spawn: newFakeSpawner(schedulerRegistry(t)),
	})
	require.NoError(t, sched.Run(context.Background(), tests))

	assert.Equal(t, local.TestsRun(), remote.TestsRun())
	assert.Equal(t, local.Counters(), remote.Counters())
	assert.Equal(t, local.ErrorSet(), remote.ErrorSet())
	assert.Equal(t, local.SuccessSet(), remote.SuccessSet())
	assert.Equal(t, local.WasSuccessful(), remote.WasSuccessful())
}
