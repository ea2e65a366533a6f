package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	coregateway "github.com/courierhq/dispatchd/core/gateway"
	"github.com/courierhq/dispatchd/core/model"
	"github.com/courierhq/dispatchd/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker        string          `json:"broker"`
	ClientID      string          `json:"client_id"`
	Username      string          `json:"username"`
	Password      string          `json:"password"`
	ResponseTopic string          `json:"response_topic"`
	UseTLS        bool            `json:"use_tls"`
	ClientCert    string          `json:"client_cert"`
	ClientKey     string          `json:"client_key"`
	CABundle      string          `json:"ca_bundle"`
	QoS           map[string]byte `json:"qos"`
	MaxRetries    int             `json:"max_retries"`
	BackoffMS     int             `json:"backoff_ms"`
	TLSConfig     *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoGateway implements the notification gateway over Eclipse Paho. Offers
// go out on per-driver topics, client notices on per-client topics, and
// driver responses come in on the shared response topic.
type PahoGateway struct {
	cli           pahoClient
	responseTopic string
	qos           map[string]byte
	responses     chan model.DriverResponse
	logger        logger.Logger
	maxRetries    int
	backoff       time.Duration
}

// offerMessage is the wire shape of an offer. The order summary is echoed
// back verbatim by driver clients as the response context.
type offerMessage struct {
	OfferID  string             `json:"offer_id"`
	DriverID string             `json:"driver_id"`
	SentAt   int64              `json:"sent_at"`
	Order    model.OrderSummary `json:"order"`
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoGateway connects to the broker and subscribes to the driver
// response topic.
func NewPahoGateway(cfg Config) (*PahoGateway, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_gateway")
	g := &PahoGateway{
		responseTopic: cfg.ResponseTopic,
		qos:           cfg.QoS,
		responses:     make(chan model.DriverResponse, 16),
		logger:        log,
		maxRetries:    cfg.MaxRetries,
		backoff:       time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := g.qos["response"]; ok {
			qos = q
		}
		if token := c.Subscribe(g.responseTopic, qos, g.onResponse); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	g.cli = c
	return g, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (g *PahoGateway) onResponse(_ paho.Client, msg paho.Message) {
	var resp model.DriverResponse
	if err := json.Unmarshal(msg.Payload(), &resp); err != nil {
		g.logger.Errorf("failed to decode driver response: %v", err)
		return
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = time.Now()
	}
	select {
	case g.responses <- resp:
	default:
		g.logger.Errorf("response channel full, dropping response %s/%s", resp.OrderID, resp.DriverID)
	}
}

// Offer publishes the order summary on the candidate's offer topic. A
// candidate without a notification address is unreachable.
func (g *PahoGateway) Offer(ctx context.Context, cand model.DriverCandidate, summary model.OrderSummary) error {
	if cand.NotifyAddress == "" {
		return coregateway.ErrUnreachableDriver
	}
	msg := offerMessage{
		OfferID:  uuid.NewString(),
		DriverID: cand.ID,
		SentAt:   time.Now().UnixMilli(),
		Order:    summary,
	}
	topic := fmt.Sprintf("drivers/%s/offer", cand.NotifyAddress)
	if err := g.publish(ctx, topic, "offer", msg); err != nil {
		return err
	}
	g.logger.Infof("sent offer %s to %s", msg.OfferID, topic)
	return nil
}

// NotifyClient publishes the event on the client's topic.
func (g *PahoGateway) NotifyClient(ctx context.Context, clientID string, event model.ClientEvent) error {
	topic := fmt.Sprintf("clients/%s/events", clientID)
	if err := g.publish(ctx, topic, "client", event); err != nil {
		return err
	}
	g.logger.Infof("notified client %s of %s", clientID, event.Type)
	return nil
}

// Responses yields inbound driver responses.
func (g *PahoGateway) Responses() <-chan model.DriverResponse {
	return g.responses
}

// publish serializes v and publishes it with exponential backoff retries.
func (g *PahoGateway) publish(ctx context.Context, topic, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	qos := byte(0)
	if q, ok := g.qos[kind]; ok {
		qos = q
	}
	retries := g.maxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := g.backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := g.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		g.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		time.Sleep(backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (g *PahoGateway) Disconnect() {
	if g.cli != nil && g.cli.IsConnected() {
		g.cli.Disconnect(250)
	}
}
