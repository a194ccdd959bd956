package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// defaultTopic subscribes to every counter group's telemetry topic.
const defaultTopic = "canteen/+/telemetry"

// Processor handles one inbound telemetry message.
type Processor interface {
	Process(ctx context.Context, payload []byte) error
}

// Subscriber consumes telemetry from the broker and feeds the ingestion
// processor. Delivery is at-least-once at best; duplicates and gaps are
// tolerated downstream.
type Subscriber struct {
	client    mqtt.Client
	processor Processor
	topic     string
	logger    *log.Logger
}

// Options configures the subscriber.
type Options struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
}

// NewSubscriber constructs a subscriber and its MQTT client.
func NewSubscriber(opts Options, processor Processor, logger *log.Logger) (*Subscriber, error) {
	if opts.BrokerURL == "" {
		return nil, errors.New("mqtt subscriber: empty broker url")
	}
	if processor == nil {
		return nil, errors.New("mqtt subscriber: nil processor")
	}
	if logger == nil {
		logger = log.Default()
	}

	clientID := opts.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("canteen-ingest-%d", time.Now().UnixNano())
	}
	topic := opts.Topic
	if topic == "" {
		topic = defaultTopic
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if opts.Username != "" {
		clientOpts = clientOpts.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	clientOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Printf("mqtt: connection lost: %v", err)
	}

	return &Subscriber{
		client:    mqtt.NewClient(clientOpts),
		processor: processor,
		topic:     topic,
		logger:    logger,
	}, nil
}

// Start connects and subscribes. Messages are processed on paho's handler
// goroutines; processing errors are already logged and counted by the
// processor, so the handler only surfaces unexpected failures.
func (s *Subscriber) Start(ctx context.Context) error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscriber: connect: %w", token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.processor.Process(ctx, msg.Payload()); err != nil {
			s.logger.Printf("mqtt: event on %s not persisted: %v", msg.Topic(), err)
		}
	}
	if token := s.client.Subscribe(s.topic, 1, handler); token.Wait() && token.Error() != nil {
		s.client.Disconnect(250)
		return fmt.Errorf("mqtt subscriber: subscribe %s: %w", s.topic, token.Error())
	}

	s.logger.Printf("mqtt: subscribed to %s", s.topic)
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if s == nil || s.client == nil {
		return
	}
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.logger.Printf("mqtt: unsubscribe error: %v", token.Error())
	}
	s.client.Disconnect(250)
}
