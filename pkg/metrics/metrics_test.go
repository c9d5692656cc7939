package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

func TestObserveCycle(t *testing.T) {
	s := New("test", logrus.New())

	s.ObserveCycle(&withdrawals.CycleResult{
		BlockNumber:      12345,
		OracleSlot:       700,
		ExitBalanceCalls: []*withdrawals.Call{{}},
		DelayedCalls:     []*withdrawals.Call{{}, {}},
	})

	require.Equal(t, float64(12345), testutil.ToFloat64(s.blockNumber))
	require.Equal(t, float64(700), testutil.ToFloat64(s.oracleSlot))
	require.Equal(t, float64(1), testutil.ToFloat64(s.cycleCalls.WithLabelValues("exit_balance")))
	require.Equal(t, float64(0), testutil.ToFloat64(s.cycleCalls.WithLabelValues("full_partial")))
	require.Equal(t, float64(2), testutil.ToFloat64(s.cycleCalls.WithLabelValues("delayed")))
	require.Equal(t, float64(1), testutil.ToFloat64(s.cycles))

	// The next cycle overwrites the per-processor gauges.
	s.ObserveCycle(&withdrawals.CycleResult{BlockNumber: 12350})
	require.Equal(t, float64(0), testutil.ToFloat64(s.cycleCalls.WithLabelValues("delayed")))
	require.Equal(t, float64(2), testutil.ToFloat64(s.cycles))
}

func TestObserveFailure(t *testing.T) {
	s := New("test", logrus.New())

	s.ObserveFailure()
	s.ObserveFailure()

	require.Equal(t, float64(2), testutil.ToFloat64(s.failures))
	require.Equal(t, float64(0), testutil.ToFloat64(s.cycles))
}

func TestAppVersionLabel(t *testing.T) {
	s := New("v1.2.3", logrus.New())

	require.Equal(t, float64(1), testutil.ToFloat64(s.appInfo.WithLabelValues("v1.2.3")))
}
