package pubsub

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) { return r.id, r.err }

type fakeTopic struct {
	msgs    []*pubsub.Message
	err     error
	stopped int
}

func (f *fakeTopic) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.msgs = append(f.msgs, msg)
	return fakeResult{id: "msg-1", err: f.err}
}

func (f *fakeTopic) Stop() { f.stopped++ }

func TestPublishMarshalsPayload(t *testing.T) {
	t.Parallel()

	topic := &fakeTopic{}
	p := &Publisher{topic: topic}
	id, err := p.Publish(context.Background(), "resolver-alerts", map[string]string{"kind": "ParseError"})
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Len(t, topic.msgs, 1)
	require.JSONEq(t, `{"kind":"ParseError"}`, string(topic.msgs[0].Data))
	require.Equal(t, "resolver-alerts", topic.msgs[0].Attributes["alert_topic"])

	require.NoError(t, p.Close())
	require.Equal(t, 1, topic.stopped)
}

func TestPublishWrapsResultError(t *testing.T) {
	t.Parallel()

	p := &Publisher{topic: &fakeTopic{err: errors.New("quota")}}
	_, err := p.Publish(context.Background(), "", "x")
	require.ErrorContains(t, err, "publish message")
}

func TestPublishUnconfigured(t *testing.T) {
	t.Parallel()

	var p *Publisher
	_, err := p.Publish(context.Background(), "", "x")
	require.Error(t, err)
	require.NoError(t, p.Close())

	_, err = Open(context.Background(), Config{})
	require.Error(t, err)
}
