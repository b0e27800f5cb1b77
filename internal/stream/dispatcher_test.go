package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recording struct {
	kinds []EventKind
	seqs  []uint64
	errs  []error
}

func (r *recording) handler(dataErr error, panicOnHeartbeat bool, errorErr error) HandlerFuncs {
	return HandlerFuncs{
		Data: func(ctx context.Context, ev Event) error {
			r.kinds = append(r.kinds, ev.Kind)
			r.seqs = append(r.seqs, ev.Seq)
			return dataErr
		},
		Heartbeat: func(ctx context.Context, ev Event) error {
			r.kinds = append(r.kinds, ev.Kind)
			r.seqs = append(r.seqs, ev.Seq)
			if panicOnHeartbeat {
				panic("boom")
			}
			return nil
		},
		Error: func(ctx context.Context, ev Event) error {
			r.kinds = append(r.kinds, ev.Kind)
			r.seqs = append(r.seqs, ev.Seq)
			r.errs = append(r.errs, ev.Err)
			return errorErr
		},
	}
}

func TestDispatcher_OrderAndSequence(t *testing.T) {
	rec := &recording{}
	d := NewDispatcher(rec.handler(nil, false, nil), "s1", nil)
	ctx := context.Background()

	d.Dispatch(ctx, Event{Kind: KindHeartbeat})
	d.Dispatch(ctx, Event{Kind: KindData})
	d.Dispatch(ctx, Event{Kind: KindError, Err: ErrConnectionLost})
	d.Dispatch(ctx, Event{Kind: KindData})

	assert.Equal(t, []EventKind{KindHeartbeat, KindData, KindError, KindData}, rec.kinds)
	assert.Equal(t, []uint64{1, 2, 3, 4}, rec.seqs)
}

func TestDispatcher_DataHandlerErrorGoesToErrorSlot(t *testing.T) {
	rec := &recording{}
	failure := errors.New("cannot store bar")
	d := NewDispatcher(rec.handler(failure, false, nil), "s1", nil)

	d.Dispatch(context.Background(), Event{Kind: KindData})
	d.Dispatch(context.Background(), Event{Kind: KindData})

	assert.Equal(t, []EventKind{KindData, KindError, KindData, KindError}, rec.kinds)
	require.Len(t, rec.errs, 2)
	var he *HandlerError
	require.True(t, errors.As(rec.errs[0], &he))
	assert.Equal(t, KindData, he.Kind)
	assert.Equal(t, uint64(1), he.Seq)
	assert.ErrorIs(t, rec.errs[0], failure)
}

func TestDispatcher_PanicIsRecovered(t *testing.T) {
	rec := &recording{}
	d := NewDispatcher(rec.handler(nil, true, nil), "s1", nil)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), Event{Kind: KindHeartbeat})
	})
	d.Dispatch(context.Background(), Event{Kind: KindData})

	assert.Equal(t, []EventKind{KindHeartbeat, KindError, KindData}, rec.kinds)
	var he *HandlerError
	require.True(t, errors.As(rec.errs[0], &he))
	assert.Equal(t, "boom", he.Panic)
}

func TestDispatcher_FailingErrorHandlerIsContained(t *testing.T) {
	rec := &recording{}
	d := NewDispatcher(rec.handler(errors.New("data"), false, errors.New("error handler broken")), "s1", nil)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), Event{Kind: KindData})
		d.Dispatch(context.Background(), Event{Kind: KindHeartbeat})
	})
	assert.Equal(t, []EventKind{KindData, KindError, KindHeartbeat}, rec.kinds)
}

func TestDispatcher_NilSlotsAndNilHandler(t *testing.T) {
	d := NewDispatcher(HandlerFuncs{}, "s1", nil)
	assert.True(t, d.Dispatch(context.Background(), Event{Kind: KindData}))

	d = NewDispatcher(nil, "s1", nil)
	assert.True(t, d.Dispatch(context.Background(), Event{Kind: KindError, Err: ErrMalformed}))
}

func TestDispatcher_ClosedDropsEvents(t *testing.T) {
	rec := &recording{}
	d := NewDispatcher(rec.handler(nil, false, nil), "s1", nil)

	d.Close()
	assert.True(t, d.Closed())
	assert.False(t, d.Dispatch(context.Background(), Event{Kind: KindData}))
	assert.Empty(t, rec.kinds)
}

func TestDispatcher_CloseWaitsForEventPastClosedCheck(t *testing.T) {
	var calls atomic.Int32
	d := NewDispatcher(HandlerFuncs{Data: func(ctx context.Context, ev Event) error {
		calls.Add(1)
		return nil
	}}, "s1", nil)

	// The timestamp is stamped after the closed check and before the handler
	// runs, so blocking the clock holds Dispatch inside that window.
	reached := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d.now = func() time.Time {
		once.Do(func() { close(reached) })
		<-release
		return time.Now()
	}

	go d.Dispatch(context.Background(), Event{Kind: KindData})
	<-reached

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while an accepted event had not reached its handler")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the pending event was delivered")
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Dispatch(context.Background(), Event{Kind: KindData}))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_CloseFromHandler(t *testing.T) {
	var d *Dispatcher
	var calls int
	d = NewDispatcher(HandlerFuncs{Data: func(ctx context.Context, ev Event) error {
		calls++
		d.Close()
		return errors.New("stop")
	}}, "s1", nil)

	done := make(chan bool, 1)
	go func() { done <- d.Dispatch(context.Background(), Event{Kind: KindData}) }()

	select {
	case delivered := <-done:
		assert.True(t, delivered)
	case <-time.After(2 * time.Second):
		t.Fatal("Close from inside a handler blocked Dispatch")
	}
	assert.False(t, d.Dispatch(context.Background(), Event{Kind: KindData}))
	assert.Equal(t, 1, calls)
}
