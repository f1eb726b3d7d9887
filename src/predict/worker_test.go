package predict

import (
	"context"
	"io"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/bbernhard/tumorscan-playground/src/api"
	datastructures "github.com/bbernhard/tumorscan-playground/src/datastructures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type predictorFunc func(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error)

func (f predictorFunc) Predict(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
	return f(ctx, filename, contentType, r)
}

type settled struct {
	mu       sync.Mutex
	outcomes map[string]Outcome
	done     chan string
}

func newSettled() *settled {
	return &settled{outcomes: map[string]Outcome{}, done: make(chan string, 100)}
}

func (s *settled) settle(ctx context.Context, job Job, outcome Outcome) {
	s.mu.Lock()
	s.outcomes[job.SessionId] = outcome
	s.mu.Unlock()
	s.done <- job.SessionId
}

func (s *settled) wait(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d jobs settled", i, n)
		}
	}
}

func (s *settled) get(id string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[id]
}

func TestDispatcherSettlesResults(t *testing.T) {
	s := newSettled()
	predictor := predictorFunc(func(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
		data, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return &datastructures.PredictionResult{Prediction: string(data), ImageName: filename}, nil
	})

	d := NewDispatcher(predictor, s.settle, 2, 10)
	d.Run()
	defer d.Stop()

	require.NoError(t, d.Submit(Job{SessionId: "a", Filename: "a.png", Data: []byte("glioma")}))
	require.NoError(t, d.Submit(Job{SessionId: "b", Filename: "b.png", Data: []byte("notumor")}))
	s.wait(t, 2)

	a := s.get("a")
	require.True(t, a.Ok())
	assert.Equal(t, "glioma", a.Result.Prediction)
	assert.Equal(t, "a.png", a.Result.ImageName)

	b := s.get("b")
	require.True(t, b.Ok())
	assert.Equal(t, "notumor", b.Result.Prediction)
}

func TestDispatcherSettlesFailures(t *testing.T) {
	s := newSettled()
	predictor := predictorFunc(func(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
		return nil, &api.Error{Kind: api.KindHTTP, Op: "predict", StatusCode: 500, Detail: "model unavailable"}
	})

	d := NewDispatcher(predictor, s.settle, 1, 1)
	d.Run()
	defer d.Stop()

	require.NoError(t, d.Submit(Job{SessionId: "a"}))
	s.wait(t, 1)

	out := s.get("a")
	assert.False(t, out.Ok())
	require.NotNil(t, out.Failure)
	assert.Equal(t, FailureHTTP, out.Failure.Kind)
	assert.Equal(t, 500, out.Failure.StatusCode)
	assert.Contains(t, out.Failure.Message, "model unavailable")
}

func TestDispatcherRecoversFromPanics(t *testing.T) {
	s := newSettled()
	predictor := predictorFunc(func(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
		panic("boom")
	})

	d := NewDispatcher(predictor, s.settle, 1, 1)
	d.Run()
	defer d.Stop()

	require.NoError(t, d.Submit(Job{SessionId: "a"}))
	s.wait(t, 1)

	out := s.get("a")
	require.NotNil(t, out.Failure)
	assert.Equal(t, FailureUnexpected, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "boom")
}

func TestDispatcherRejectsWhenQueueIsFull(t *testing.T) {
	s := newSettled()
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	predictor := predictorFunc(func(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
		started <- struct{}{}
		<-release
		return &datastructures.PredictionResult{Prediction: "glioma"}, nil
	})

	d := NewDispatcher(predictor, s.settle, 1, 1)
	d.Run()
	defer d.Stop()

	require.NoError(t, d.Submit(Job{SessionId: "running"}))
	<-started
	require.NoError(t, d.Submit(Job{SessionId: "queued"}))

	// the dispatcher may already hold "queued" while it waits for a worker
	accepted := 2
	var err error
	for i := 0; i < 3; i++ {
		if err = d.Submit(Job{SessionId: "overflow"}); err != nil {
			break
		}
		accepted++
	}
	assert.Equal(t, ErrQueueFull, err)

	close(release)
	s.wait(t, accepted)
	assert.True(t, s.get("running").Ok())
	assert.True(t, s.get("queued").Ok())
}

func TestStopSettlesInFlightAndQueuedJobs(t *testing.T) {
	s := newSettled()
	started := make(chan struct{}, 1)
	predictor := predictorFunc(func(ctx context.Context, filename string, contentType string, r io.Reader) (*datastructures.PredictionResult, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, &api.Error{Kind: api.KindNetwork, Op: "predict", Err: ctx.Err()}
	})

	d := NewDispatcher(predictor, s.settle, 1, 5)
	d.Run()

	require.NoError(t, d.Submit(Job{SessionId: "running"}))
	<-started
	require.NoError(t, d.Submit(Job{SessionId: "queued"}))

	d.Stop()
	s.wait(t, 2)

	assert.Equal(t, FailureNetwork, s.get("running").Failure.Kind)
	assert.Equal(t, FailureStopped, s.get("queued").Failure.Kind)
	assert.Equal(t, ErrStopped, d.Submit(Job{SessionId: "late"}))
}

func TestNewFailureClassification(t *testing.T) {
	assert.Equal(t, FailureNetwork, NewFailure(&api.Error{Kind: api.KindNetwork}).Kind)
	assert.Equal(t, FailureResponse, NewFailure(&api.Error{Kind: api.KindDecode}).Kind)
	assert.Equal(t, FailureResponse, NewFailure(&api.Error{Kind: api.KindInvalid}).Kind)
	assert.Equal(t, FailureBusy, NewFailure(ErrQueueFull).Kind)

	f := NewFailure(&api.Error{Kind: api.KindHTTP, StatusCode: 502})
	assert.Equal(t, "The prediction service returned an error (status 502).", f.Message)
}
