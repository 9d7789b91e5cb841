package scoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var features = []float64{100, 101, 103, 104}

func TestStaticPredictsFixedWeights(t *testing.T) {
	m := SpreadOnly()
	w, err := m.Predict(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, w)

	w[0] = 42
	again, _ := m.Predict(context.Background(), nil)
	assert.Equal(t, 1.0, again[0])
	assert.NoError(t, m.Retrain(context.Background(), []domain.Sample{{Features: features}}))
}

func TestLinearStartsSpreadOnly(t *testing.T) {
	m := NewLinear(len(features), LinearConfig{})
	w, err := m.Predict(context.Background(), features)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, w)
}

func TestLinearRejectsWrongLength(t *testing.T) {
	m := NewLinear(4, LinearConfig{})
	_, err := m.Predict(context.Background(), []float64{1, 2})
	assert.ErrorIs(t, err, ErrFeatureMismatch)

	err = m.Retrain(context.Background(), []domain.Sample{{Features: []float64{1}, Label: []float64{1, 0, 0}}})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
	assert.Equal(t, 0, m.Trainings())
}

func TestLinearLearnsConstantTarget(t *testing.T) {
	m := NewLinear(len(features), LinearConfig{})
	samples := make([]domain.Sample, 10)
	for i := range samples {
		samples[i] = domain.Sample{Features: features, Label: []float64{0.2, 0.8, 0}}
	}
	require.NoError(t, m.Retrain(context.Background(), samples))

	w, err := m.Predict(context.Background(), features)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, w[0], 0.05)
	assert.InDelta(t, 0.8, w[1], 0.05)
	assert.InDelta(t, 0.0, w[2], 0.05)
	assert.Equal(t, 1, m.Trainings())
}

func TestLinearDivergenceLeavesModelUnchanged(t *testing.T) {
	m := NewLinear(len(features), LinearConfig{LearningRate: 1e6, Epochs: 200})
	samples := []domain.Sample{{Features: features, Label: []float64{0, 1, 0}}}

	err := m.Retrain(context.Background(), samples)
	require.Error(t, err)

	w, _ := m.Predict(context.Background(), features)
	assert.Equal(t, []float64{1, 0, 0}, w)
}

func TestLinearCheckpointRoundTrip(t *testing.T) {
	src := NewLinear(len(features), LinearConfig{})
	require.NoError(t, src.Retrain(context.Background(), []domain.Sample{
		{Features: features, Label: []float64{0.5, 0.5, 0}},
	}))
	data, err := src.Checkpoint()
	require.NoError(t, err)

	dst := NewLinear(len(features), LinearConfig{})
	require.NoError(t, dst.Restore(data))

	want, _ := src.Predict(context.Background(), features)
	got, _ := dst.Predict(context.Background(), features)
	assert.Equal(t, want, got)

	other := NewLinear(2, LinearConfig{})
	assert.ErrorIs(t, other.Restore(data), ErrFeatureMismatch)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Save(ctx, "model", []byte(`{"a":1}`)))
	require.NoError(t, s.Save(ctx, "model", []byte(`{"a":2}`)))
	data, err := s.Load(ctx, "model")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestSamplesLabels(t *testing.T) {
	got := Samples([]domain.TradeRecord{
		{PriceDiff: 1, Amount: 3, Features: features},
		{PriceDiff: 2, Amount: 2},
		{PriceDiff: 0, Amount: 0, Features: features},
	})
	require.Len(t, got, 1)
	assert.Equal(t, []float64{0.25, 0.75, 0}, got[0].Label)
}

type failingModel struct {
	err   error
	panic bool
	calls int
}

func (f *failingModel) Predict(context.Context, []float64) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func (f *failingModel) Retrain(context.Context, []domain.Sample) error {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.err
}

func history(n int) domain.LedgerSnapshot {
	var snap domain.LedgerSnapshot
	for i := 0; i < n; i++ {
		snap.History = append(snap.History, domain.TradeRecord{PriceDiff: 1, Amount: 1, Features: features})
	}
	return snap
}

func TestRetrainerSkipsBelowMinimum(t *testing.T) {
	m := &failingModel{}
	r := NewRetrainer(m, nil, RetrainerConfig{MinTrades: 3}, discard())

	out := r.Retrain(context.Background(), history(2))
	assert.Equal(t, RetrainSkipped, out.Status)
	assert.Zero(t, m.calls)
}

func TestRetrainerReportsFailures(t *testing.T) {
	for name, m := range map[string]*failingModel{
		"error": {err: errors.New("bad data")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			r := NewRetrainer(m, nil, RetrainerConfig{MinTrades: 1}, discard())
			out := r.Retrain(context.Background(), history(2))
			assert.Equal(t, RetrainFailed, out.Status)
			assert.Equal(t, 2, out.Samples)
			var me *domain.ModelError
			assert.ErrorAs(t, out.Err, &me)
		})
	}
}

func TestRetrainerPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	m := NewLinear(len(features), LinearConfig{})
	r := NewRetrainer(m, store, RetrainerConfig{MinTrades: 1, CheckpointKey: "btc"}, discard())
	out := r.Retrain(ctx, history(4))
	require.Equal(t, RetrainTrained, out.Status)
	require.NoError(t, out.Err)

	fresh := NewLinear(len(features), LinearConfig{})
	require.NoError(t, NewRetrainer(fresh, store, RetrainerConfig{CheckpointKey: "btc"}, discard()).Restore(ctx))

	want, _ := m.Predict(ctx, features)
	got, _ := fresh.Predict(ctx, features)
	assert.Equal(t, want, got)
}

func TestRestoreWithoutCheckpointIsNoop(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := NewLinear(len(features), LinearConfig{})
	assert.NoError(t, NewRetrainer(m, store, RetrainerConfig{}, discard()).Restore(context.Background()))
}
