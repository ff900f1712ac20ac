package metrics

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/btrun/internal/behavior"
	btest "github.com/joeycumines/btrun/internal/testutil"
	bt "github.com/joeycumines/go-behaviortree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoStepTree = `<root BTCPP_format="4" main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence name="seq">
      <AlwaysSuccess name="a"/>
      <AlwaysSuccess name="b"/>
    </Sequence>
  </BehaviorTree>
</root>`

func TestCollector_CountsTransitions(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "test")
	require.NoError(t, err)

	tree, err := behavior.NewFactory().CreateTreeFromText(twoStepTree, nil)
	require.NoError(t, err)
	tree.AddObserver(c)

	for i := 0; i < 2; i++ {
		status, err := tree.TickOnce()
		require.NoError(t, err)
		require.Equal(t, bt.Success, status)
	}

	for _, node := range []string{"seq", "seq/a", "seq/b"} {
		assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("Main", node, "SUCCESS")), node)
	}
	assert.Equal(t, 3, testutil.CollectAndCount(c.transitions))
}

func TestCollector_AsyncRun(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "test")
	require.NoError(t, err)

	tree, err := behavior.NewFactory().CreateTreeFromText(`<root BTCPP_format="4">
  <BehaviorTree ID="Main"><Sleep name="nap" msec="20"/></BehaviorTree>
</root>`, nil)
	require.NoError(t, err)
	tree.AddObserver(c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		// the hour-long interval only ends early through Tree.Wake
		_, err := tree.Run(ctx, behavior.RunOptions{Interval: time.Hour})
		done <- err
	}()

	count := func(status string) func() float64 {
		return func() float64 {
			return testutil.ToFloat64(c.transitions.WithLabelValues("Main", "nap", status))
		}
	}
	_, err = btest.WaitForState(ctx, count("RUNNING"), func(v float64) bool { return v == 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, 1.0, count("SUCCESS")())
}

func TestCollector_ObserveRun(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "btrun")
	require.NoError(t, err)

	c.ObserveRun("MainTree", bt.Success, nil, 20*time.Millisecond)
	c.ObserveRun("MainTree", bt.Failure, nil, time.Millisecond)
	c.ObserveRun("MainTree", bt.Running, context.Canceled, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("MainTree", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("MainTree", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("MainTree", "error")))

	err = testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP btrun_tree_runs_total Completed tree runs, by outcome.
# TYPE btrun_tree_runs_total counter
btrun_tree_runs_total{outcome="error",tree="MainTree"} 1
btrun_tree_runs_total{outcome="failure",tree="MainTree"} 1
btrun_tree_runs_total{outcome="success",tree="MainTree"} 1
`), "btrun_tree_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration, "btrun_tree_run_duration_seconds"))
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg, "btrun")
	require.NoError(t, err)
	_, err = NewCollector(reg, "btrun")
	var already prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &already)
}

func TestOutcome(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "success", Outcome(bt.Success, nil))
	assert.Equal(t, "failure", Outcome(bt.Failure, nil))
	assert.Equal(t, "running", Outcome(bt.Running, nil))
	assert.Equal(t, "error", Outcome(bt.Success, errors.New("boom")))
}

func TestServeListener(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "btrun")
	require.NoError(t, err)
	c.ObserveRun("MainTree", bt.Success, nil, time.Millisecond)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, reg, nil) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `btrun_tree_runs_total{outcome="success",tree="MainTree"} 1`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServe_BadAddress(t *testing.T) {
	t.Parallel()
	err := Serve(context.Background(), "256.0.0.1:bad", prometheus.NewRegistry(), nil)
	require.ErrorContains(t, err, "metrics: listen")
}
