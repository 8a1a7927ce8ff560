package gridstore_test

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/4vn/gridstore"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsync_DeliversExactlyOnce(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()

	ch := reg.WriteAsync(ctx, gridstore.BytesSource("async"), gridstore.WriteOptions{Filename: "async.txt"})
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, "async.txt", res.Value.Filename)

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the single result")

	read := <-reg.ReadAsync(ctx, res.Value.ID)
	require.NoError(t, read.Err)
	require.NoError(t, read.Value.Close())

	removed := <-reg.RemoveAsync(ctx, "async.txt")
	require.NoError(t, removed.Err)

	failed := <-reg.ReadAsync(ctx, "async.txt")
	require.ErrorIs(t, failed.Err, gridstore.ErrNoMatch)
	assert.Nil(t, failed.Value)
}

func TestThen_CallsBackOnce(t *testing.T) {
	reg, _, _ := newRegistry(t)

	var calls atomic.Int32
	done := make(chan error, 1)
	gridstore.Then(reg.RemoveAsync(context.Background(), 12), func(_ struct{}, err error) {
		calls.Add(1)
		done <- err
	})

	select {
	case err := <-done:
		require.ErrorIs(t, err, gridstore.ErrInvalidSelector)
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func counterValue(t *testing.T, reg *prometheus.Registry, op, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "gridstore_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, op, result) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, op, result string) bool {
	var gotOp, gotResult string
	for _, l := range m.GetLabel() {
		switch l.GetName() {
		case "op":
			gotOp = l.GetValue()
		case "result":
			gotResult = l.GetValue()
		}
	}
	return gotOp == op && gotResult == result
}

func TestWithMetrics_CountsOutcomes(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg, _, _ := newRegistry(t, gridstore.WithMetrics(promReg))
	ctx := context.Background()

	_, err := reg.Write(ctx, gridstore.BytesSource("x"), gridstore.WriteOptions{Filename: "m.txt"})
	require.NoError(t, err)
	_, err = reg.Read(ctx, "absent")
	require.Error(t, err)
	_, err = reg.Read(ctx, 1)
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, promReg, "write", "ok"))
	assert.Equal(t, 1.0, counterValue(t, promReg, "read", "no_match"))
	assert.Equal(t, 1.0, counterValue(t, promReg, "read", "invalid"))
}

func TestWithMetrics_DuplicateRegistration(t *testing.T) {
	promReg := prometheus.NewRegistry()
	newRegistry(t, gridstore.WithMetrics(promReg))

	_, err := gridstore.New(&countingEngine{}, gridstore.WithMetrics(promReg))
	require.Error(t, err)
}

func TestWithLogger_LogsOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	reg, _, _ := newRegistry(t, gridstore.WithLogger(logger))
	ctx := context.Background()

	rec, err := reg.Write(ctx, gridstore.BytesSource("logged"), gridstore.WriteOptions{Filename: "log.txt"})
	require.NoError(t, err)
	_, err = reg.Read(ctx, "nothing-here")
	require.Error(t, err)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "debug", first["level"])
	assert.Equal(t, "write", first["op"])
	assert.Equal(t, rec.ID.Hex(), first["id"])
	assert.Equal(t, "log.txt", first["filename"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "warn", second["level"])
	assert.Equal(t, "read", second["op"])
	assert.Contains(t, second["error"], "no match")
}
