package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coregateway "github.com/courierhq/dispatchd/core/gateway"
	"github.com/courierhq/dispatchd/core/model"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type fakeClient struct {
	published map[string][][]byte
	failURIs  map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{published: make(map[string][][]byte), failURIs: make(map[string]int)}
}

func (c *fakeClient) IsConnected() bool       { return true }
func (c *fakeClient) Connect() paho.Token     { return fakeToken{} }
func (c *fakeClient) Disconnect(quiesce uint) {}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	if n := c.failURIs[topic]; n > 0 {
		c.failURIs[topic] = n - 1
		return fakeToken{err: errors.New("broker unavailable")}
	}
	c.published[topic] = append(c.published[topic], payload.([]byte))
	return fakeToken{}
}

func (c *fakeClient) Subscribe(string, byte, paho.MessageHandler) paho.Token { return fakeToken{} }

type fakeMessage struct{ payload []byte }

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "drivers/responses" }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestGateway(t *testing.T) (*PahoGateway, *fakeClient) {
	t.Helper()
	cli := newFakeClient()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }
	t.Cleanup(func() { newMQTTClient = orig })

	gw, err := NewPahoGateway(Config{
		Broker:        "tcp://localhost:1883",
		ClientID:      "test",
		ResponseTopic: "drivers/responses",
		BackoffMS:     1,
	})
	require.NoError(t, err)
	return gw, cli
}

func TestPahoGateway_Offer(t *testing.T) {
	gw, cli := newTestGateway(t)
	cand := model.DriverCandidate{ID: "d1", NotifyAddress: "d1"}
	summary := model.OrderSummary{OrderID: "o1", ClientID: "c1"}

	require.NoError(t, gw.Offer(context.Background(), cand, summary))

	msgs := cli.published["drivers/d1/offer"]
	require.Len(t, msgs, 1)
	var sent offerMessage
	require.NoError(t, json.Unmarshal(msgs[0], &sent))
	assert.Equal(t, "d1", sent.DriverID)
	assert.Equal(t, "o1", sent.Order.OrderID)
	assert.NotEmpty(t, sent.OfferID)
}

func TestPahoGateway_OfferUnreachable(t *testing.T) {
	gw, _ := newTestGateway(t)
	err := gw.Offer(context.Background(), model.DriverCandidate{ID: "d1"}, model.OrderSummary{})
	assert.ErrorIs(t, err, coregateway.ErrUnreachableDriver)
}

func TestPahoGateway_OfferRetries(t *testing.T) {
	gw, cli := newTestGateway(t)
	cli.failURIs["drivers/d1/offer"] = 2

	err := gw.Offer(context.Background(), model.DriverCandidate{ID: "d1", NotifyAddress: "d1"}, model.OrderSummary{})

	require.NoError(t, err)
	assert.Len(t, cli.published["drivers/d1/offer"], 1)
}

func TestPahoGateway_OfferExhaustsRetries(t *testing.T) {
	gw, cli := newTestGateway(t)
	cli.failURIs["drivers/d1/offer"] = 100

	err := gw.Offer(context.Background(), model.DriverCandidate{ID: "d1", NotifyAddress: "d1"}, model.OrderSummary{})
	assert.Error(t, err)
}

func TestPahoGateway_NotifyClient(t *testing.T) {
	gw, cli := newTestGateway(t)
	ev := model.ClientEvent{Type: model.ClientEventAccepted, OrderID: "o1", DriverID: "d1"}

	require.NoError(t, gw.NotifyClient(context.Background(), "c1", ev))

	msgs := cli.published["clients/c1/events"]
	require.Len(t, msgs, 1)
	var sent model.ClientEvent
	require.NoError(t, json.Unmarshal(msgs[0], &sent))
	assert.Equal(t, model.ClientEventAccepted, sent.Type)
}

func TestPahoGateway_OnResponse(t *testing.T) {
	gw, _ := newTestGateway(t)
	payload, err := json.Marshal(model.DriverResponse{DriverID: "d1", OrderID: "o1", Accepted: true})
	require.NoError(t, err)

	gw.onResponse(nil, fakeMessage{payload: payload})

	select {
	case resp := <-gw.Responses():
		assert.Equal(t, "o1", resp.OrderID)
		assert.True(t, resp.Accepted)
		assert.False(t, resp.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("response not delivered")
	}
}

func TestPahoGateway_OnResponseBadPayload(t *testing.T) {
	gw, _ := newTestGateway(t)
	gw.onResponse(nil, fakeMessage{payload: []byte("not json")})

	select {
	case resp := <-gw.Responses():
		t.Fatalf("unexpected response: %#v", resp)
	default:
	}
}
