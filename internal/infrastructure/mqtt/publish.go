package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish hands a message to paho without waiting for delivery.
//
// Inputs are validated synchronously. Delivery is best-effort: the publish
// token is checked on a background goroutine and a failure, including
// publishing while disconnected, is only logged at debug level.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "sensor/aa:bb:cc/command")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS or ErrPublishFailed for bad input,
//     ErrNotConnected if Connect was never called
//
// Example:
//
//	topic := mqtt.Topics{}.Command("aa:bb:cc")
//	err := client.Publish(topic, []byte("tune set power 1"), 0, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	cl := c.pahoClient()
	if cl == nil {
		return ErrNotConnected
	}

	token := cl.Publish(topic, qos, retained, payload)
	go c.watchToken(token, "publish", topic)

	return nil
}
