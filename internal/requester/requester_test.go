package requester

import (
	"context"
	"testing"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habemus/amqp-worker/internal/observability"
	"github.com/habemus/amqp-worker/pkg/amqp"
	"github.com/habemus/amqp-worker/pkg/faults"
	"github.com/habemus/amqp-worker/pkg/models"
)

func newTestRequester(t *testing.T, ch amqp.Channel) *Requester {
	t.Helper()

	r, err := New(ch, Config{TaskName: "demo-task", AppID: "app-1"})
	require.NoError(t, err)
	return r
}

func newUpdate(kind models.Kind, correlationID string, body []byte, contentType string) amqp091.Delivery {
	return amqp091.Delivery{
		Body:          body,
		ContentType:   contentType,
		CorrelationId: correlationID,
		Type:          string(kind),
		AppId:         "worker-1",
		Timestamp:     time.Now(),
	}
}

func TestRequester_New_Validation(t *testing.T) {
	_, err := New(nil, Config{TaskName: "demo-task"})
	assert.True(t, faults.IsKind(err, faults.KindNotConnected))

	_, err = New(amqp.NewMockChannel(), Config{TaskName: ""})
	assert.True(t, faults.IsKind(err, faults.KindInvalidOption))
}

func TestRequester_SubmitBeforeStart(t *testing.T) {
	ch := amqp.NewMockChannel()
	r := newTestRequester(t, ch)

	_, err := r.Submit(context.Background(), map[string]interface{}{"someKey": "someValue"})

	assert.True(t, faults.IsKind(err, faults.KindNotConnected))
	assert.Empty(t, ch.GetPublished())
}

func TestRequester_Start_DeclaresTopology(t *testing.T) {
	ch := amqp.NewMockChannel()
	r := newTestRequester(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))

	require.Len(t, ch.DeclaredQueues, 2)
	assert.Equal(t, amqp.QueueDeclaration{Name: "demo-task", Durable: true}, ch.DeclaredQueues[0])
	assert.Equal(t, amqp.QueueDeclaration{
		Name:       "demo-task-reply-app-1",
		AutoDelete: true,
		Exclusive:  true,
	}, ch.DeclaredQueues[1])

	require.Len(t, ch.DeclaredExchanges, 1)
	assert.Equal(t, "demo-task-exchange", ch.DeclaredExchanges[0].Name)

	require.Len(t, ch.Bindings, 1)
	assert.Equal(t, amqp.Binding{Queue: "demo-task", Key: "demo-task", Exchange: "demo-task-exchange"}, ch.Bindings[0])
}

func TestRequester_Submit_PublishesWorkRequest(t *testing.T) {
	ch := amqp.NewMockChannel()
	r := newTestRequester(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))

	id, err := r.Submit(ctx, map[string]interface{}{"someKey": "someValue"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	published := ch.GetPublished()
	require.Len(t, published, 1)
	p := published[0]
	assert.Equal(t, "demo-task-exchange", p.Exchange)
	assert.Equal(t, "demo-task", p.RoutingKey)
	assert.True(t, p.Mandatory)
	assert.Equal(t, id, p.Msg.MessageId)
	assert.Equal(t, "demo-task-reply-app-1", p.Msg.ReplyTo)
	assert.Equal(t, string(models.KindWorkRequest), p.Msg.Type)
	assert.Equal(t, "app-1", p.Msg.AppId)
	assert.Equal(t, models.ContentTypeJSON, p.Msg.ContentType)
	assert.Equal(t, models.ContentEncoding, p.Msg.ContentEncoding)
	assert.Equal(t, uint8(amqp091.Persistent), p.Msg.DeliveryMode)
	assert.JSONEq(t, `{"someKey":"someValue"}`, string(p.Msg.Body))
}

func TestRequester_Submit_FreshCorrelationIDs(t *testing.T) {
	ch := amqp.NewMockChannel()
	r := newTestRequester(t, ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))

	first, err := r.Submit(ctx, "one")
	require.NoError(t, err)
	second, err := r.Submit(ctx, "two")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestRequester_Dispatch_ByKind(t *testing.T) {
	r := newTestRequester(t, amqp.NewMockChannel())

	var successes, logs []models.Update
	r.On(models.KindResultSuccess, func(u models.Update) { successes = append(successes, u) })
	r.On(models.KindLogInfo, func(u models.Update) { logs = append(logs, u) })

	r.dispatch(newUpdate(models.KindResultSuccess, "corr-1", []byte(`{"ok":true}`), models.ContentTypeJSON))
	r.dispatch(newUpdate(models.KindLogInfo, "corr-1", []byte("a log line"), models.ContentTypeText))

	require.Len(t, successes, 1)
	assert.Equal(t, "corr-1", successes[0].CorrelationID)
	assert.Equal(t, models.KindResultSuccess, successes[0].Kind)
	assert.Equal(t, map[string]interface{}{"ok": true}, successes[0].Payload)
	assert.Equal(t, "worker-1", successes[0].SenderAppID)

	require.Len(t, logs, 1)
	assert.Equal(t, "a log line", logs[0].Payload)
}

func TestRequester_Dispatch_DropsMissingCorrelationID(t *testing.T) {
	r := newTestRequester(t, amqp.NewMockChannel())

	called := false
	r.On(models.KindResultSuccess, func(models.Update) { called = true })

	r.dispatch(newUpdate(models.KindResultSuccess, "", []byte(`{}`), models.ContentTypeJSON))

	assert.False(t, called)
}

func TestRequester_Dispatch_IgnoresUnknownKind(t *testing.T) {
	r := newTestRequester(t, amqp.NewMockChannel())

	called := false
	r.On(models.KindResultSuccess, func(models.Update) { called = true })

	r.dispatch(newUpdate(models.Kind("metric:gauge"), "corr-1", []byte(`{}`), models.ContentTypeJSON))
	r.dispatch(newUpdate(models.KindWorkRequest, "corr-1", []byte(`{}`), models.ContentTypeJSON))

	assert.False(t, called)
}

func TestRequester_Dispatch_DropsUndecodableUpdate(t *testing.T) {
	r := newTestRequester(t, amqp.NewMockChannel())

	called := false
	r.On(models.KindResultSuccess, func(models.Update) { called = true })

	r.dispatch(newUpdate(models.KindResultSuccess, "corr-1", []byte(`{broken`), models.ContentTypeJSON))

	assert.False(t, called)
}

func TestRequester_ConsumesRepliesFromChannel(t *testing.T) {
	ch := amqp.NewMockChannel()
	metrics := observability.NewInMemoryMetrics()

	r, err := New(ch, Config{TaskName: "demo-task", AppID: "app-1", Metrics: metrics})
	require.NoError(t, err)

	updates := make(chan models.Update, 1)
	r.On(models.KindResultSuccess, func(u models.Update) { updates <- u })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))

	ch.Deliver(newUpdate(models.KindResultSuccess, "corr-9", []byte(`"done"`), models.ContentTypeJSON))

	select {
	case u := <-updates:
		assert.Equal(t, "corr-9", u.CorrelationID)
		assert.Equal(t, "done", u.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}

	assert.Equal(t, int64(1), metrics.GetUpdates())
}
