package eventbus

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semstore/internal/ir"
)

func TestDispatcher_Publish(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher()

	var got []string
	d.Subscribe(DisplayCacheInvalidate, "b-parser-cache", func(_ context.Context, ev Event) error {
		got = append(got, "b:"+ev.Subject.Title)
		return nil
	})
	d.Subscribe(DisplayCacheInvalidate, "a-html-cache", func(_ context.Context, ev Event) error {
		got = append(got, "a:"+ev.Subject.Title)
		return nil
	})
	d.Subscribe("other", "ignored", func(context.Context, Event) error {
		t.Fatal("handler for another event called")
		return nil
	})

	require.NoError(t, d.Publish(ctx, DisplayCacheInvalidate, ir.NewSubject("Berlin", ir.NSMain)))
	assert.Equal(t, []string{"a:Berlin", "b:Berlin"}, got, "handlers run in name order")
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewDispatcher()
	assert.NoError(t, d.Publish(context.Background(), DisplayCacheInvalidate, ir.NewSubject("A", ir.NSMain)))
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	d.Subscribe("e", "h", func(context.Context, Event) error { calls++; return nil })
	d.Unsubscribe("e", "h")
	d.Unsubscribe("e", "missing")

	require.NoError(t, d.Publish(context.Background(), "e", ir.NewSubject("A", ir.NSMain)))
	assert.Zero(t, calls)
}

func TestDispatcher_FailuresAreCombined(t *testing.T) {
	d := NewDispatcher()
	ran := 0
	d.Subscribe("e", "first", func(context.Context, Event) error { ran++; return stderrors.New("first failed") })
	d.Subscribe("e", "second", func(context.Context, Event) error { ran++; return nil })
	d.Subscribe("e", "third", func(context.Context, Event) error { ran++; return stderrors.New("third failed") })

	err := d.Publish(context.Background(), "e", ir.NewSubject("A", ir.NSMain))
	require.Error(t, err)
	assert.Equal(t, 3, ran, "every handler runs")
	assert.Contains(t, err.Error(), "first failed")
	assert.Contains(t, err.Error(), "third failed")
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	bus := Multi{a, nil, b}
	subj := ir.NewSubject("Paris", ir.NSMain)

	require.NoError(t, bus.Publish(context.Background(), DisplayCacheInvalidate, subj))
	want := []Event{{Name: DisplayCacheInvalidate, Subject: subj}}
	assert.Equal(t, want, a.Events())
	assert.Equal(t, want, b.Events())
}

func TestEventEnvelope(t *testing.T) {
	subj := ir.NewSubject("Paris", ir.NSMain).WithSubobject("geo")
	raw, err := encodeEvent(DisplayCacheInvalidate, subj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"display-cache invalidate","subject":{"namespace":0,"title":"Paris","subobject":"geo"}}`, string(raw))

	ev, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, DisplayCacheInvalidate, ev.Name)
	assert.True(t, subj.Equal(ev.Subject))
}

func TestNewRedisBus_RequiresAddress(t *testing.T) {
	_, err := NewRedisBus(context.Background(), "", "", nil)
	assert.Error(t, err)
}
