package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixSensor is the root of every Duux device topic.
const TopicPrefixSensor = "sensor"

// Topics provides builders for Duux device topics.
//
// Device ids are lowercased; the broker topic namespace is case sensitive
// and devices publish under their lowercase MAC.
//
//	topics := mqtt.Topics{}
//	topics.State("AA:BB:CC")   // "sensor/aa:bb:cc/in"
//	topics.Command("AA:BB:CC") // "sensor/aa:bb:cc/command"
type Topics struct{}

// State returns the topic a device publishes its state frames on.
func (Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/%s/in", TopicPrefixSensor, strings.ToLower(deviceID))
}

// Command returns the topic a device reads commands from.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixSensor, strings.ToLower(deviceID))
}
