package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/frontdesk-checkout/internal/failure"
	"github.com/mmeshcher/frontdesk-checkout/internal/model"
)

type stubRemote struct {
	quote *model.Quote
	err   error
	delay time.Duration
	calls int
}

func (s *stubRemote) Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.quote, s.err
}

var boardingReq = model.QuoteRequest{
	Service: model.ServiceBoarding,
	Nights:  2,
	Lodging: model.LodgingRoom,
	Dogs:    1,
}

func TestQuoter_LocalOnly(t *testing.T) {
	q := NewQuoter(testPolicy(t), nil, 0, zap.NewNop())

	res, err := q.Quote(context.Background(), boardingReq)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteSourceLocal, res.Meta.Source)
	assert.Equal(t, "110", res.Total.String())
}

func TestQuoter_RemoteWins(t *testing.T) {
	remote := &stubRemote{quote: &model.Quote{Total: dec("99.99")}}
	q := NewQuoter(testPolicy(t), remote, time.Second, zap.NewNop())

	res, err := q.Quote(context.Background(), boardingReq)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, model.QuoteSourceRemote, res.Meta.Source)
	assert.Equal(t, "99.99", res.Total.String())
}

func TestQuoter_FallsBackOnRemoteError(t *testing.T) {
	remote := &stubRemote{err: errors.New("connection refused")}
	q := NewQuoter(testPolicy(t), remote, time.Second, zap.NewNop())

	res, err := q.Quote(context.Background(), boardingReq)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteSourceLocal, res.Meta.Source)
	assert.Equal(t, "110", res.Total.String())
}

func TestQuoter_FallsBackOnRemoteTimeout(t *testing.T) {
	remote := &stubRemote{quote: &model.Quote{}, delay: time.Second}
	q := NewQuoter(testPolicy(t), remote, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	res, err := q.Quote(context.Background(), boardingReq)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, model.QuoteSourceLocal, res.Meta.Source)
}

func TestQuoter_LocalErrorSurfaces(t *testing.T) {
	remote := &stubRemote{err: errors.New("down")}
	q := NewQuoter(testPolicy(t), remote, time.Second, zap.NewNop())

	_, err := q.Quote(context.Background(), model.QuoteRequest{
		Service: model.ServiceBoarding,
		Nights:  1,
		Lodging: model.LodgingSuite,
		Dogs:    9,
	})
	assert.Equal(t, failure.KindConfiguration, failure.KindOf(err))
}

func TestQuoter_RejectsUnknownServiceBeforeRemote(t *testing.T) {
	remote := &stubRemote{quote: &model.Quote{}}
	q := NewQuoter(testPolicy(t), remote, time.Second, zap.NewNop())

	_, err := q.Quote(context.Background(), model.QuoteRequest{Service: "spa"})
	assert.Equal(t, failure.KindValidation, failure.KindOf(err))
	assert.Equal(t, 0, remote.calls)
}

func TestQuoter_SetPolicy(t *testing.T) {
	q := NewQuoter(testPolicy(t), nil, 0, zap.NewNop())

	next := testPolicy(t)
	next.Version = "test-2"
	next.Boarding.Nightly[model.LodgingRoom][1] = dec("60")
	q.SetPolicy(next)

	res, err := q.Quote(context.Background(), boardingReq)
	require.NoError(t, err)
	assert.Equal(t, "test-2", q.Policy().Version)
	assert.Equal(t, "120", res.Total.String())
}
