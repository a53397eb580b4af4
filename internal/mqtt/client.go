// Package mqtt publishes entity states to an MQTT broker and accepts switch
// commands from it.
package mqtt

import (
	"fmt"
	"log"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Client wraps a paho client with reconnect handling.
type Client struct {
	client mqtt.Client
}

// Config holds MQTT client configuration
type Config struct {
	ServerURL         string
	ClientID          string        // Defaults to omada-poe-<uuid>
	MaxRetries        int           // Maximum number of connection retries (0 = infinite)
	InitialRetryDelay time.Duration // Initial delay between retries
	MaxRetryDelay     time.Duration // Maximum delay between retries
	OnConnect         func(*Client) // Called after every (re)connect
}

// DefaultClientID returns a client id that is unique per process.
func DefaultClientID() string {
	return "omada-poe-" + uuid.NewString()
}

// NewClient creates a new MQTT client with the given configuration.
// The client connects asynchronously and retries if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	parsedURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}

	if parsedURL.Scheme != "mqtt" && parsedURL.Scheme != "tcp" {
		return nil, fmt.Errorf("%w: %s: must use mqtt:// scheme", ErrInvalidServerURL, config.ServerURL)
	}

	initialDelay := config.InitialRetryDelay
	if initialDelay == 0 {
		initialDelay = time.Second
	}
	maxDelay := config.MaxRetryDelay
	if maxDelay == 0 {
		maxDelay = 30 * time.Second
	}
	clientID := config.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + parsedURL.Host)
	if parsedURL.User != nil {
		opts.SetUsername(parsedURL.User.Username())
		if password, ok := parsedURL.User.Password(); ok {
			opts.SetPassword(password)
		}
	}
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxDelay)
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("mqtt connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("connected to mqtt broker at %s", parsedURL.Host)

		if config.OnConnect != nil {
			config.OnConnect(&Client{client: client})
		}
	})

	client := mqtt.NewClient(opts)

	go func() {
		delay := initialDelay
		attempt := 0
		for {
			if token := client.Connect(); token.Wait() && token.Error() != nil {
				attempt++
				if config.MaxRetries > 0 && attempt >= config.MaxRetries {
					log.Printf("failed to connect to mqtt broker after %d attempts, giving up: %v", attempt, token.Error())
					return
				}

				log.Printf("failed to connect to mqtt broker (attempt %d): %v. retrying in %v...", attempt, token.Error(), delay)
				time.Sleep(delay)

				delay = delay * 2
				if delay > maxDelay {
					delay = maxDelay
				}
				continue
			}
			return
		}
	}()

	return &Client{client: client}, nil
}

// Publish publishes a message to the specified topic
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if token := c.client.Publish(topic, qos, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, token.Error())
	}

	return nil
}

// Subscribe subscribes to a topic with the given message handler
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	wrappedHandler := func(client mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}

	if token := c.client.Subscribe(topic, qos, wrappedHandler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w %s: %v", ErrSubscribeFailed, topic, token.Error())
	}

	return nil
}

// IsConnected returns true if the client is connected to the MQTT broker
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect(quiesce uint) {
	if c.IsConnected() {
		c.client.Disconnect(quiesce)
		log.Printf("disconnected from mqtt broker")
	}
}
