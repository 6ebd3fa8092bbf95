package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
const (
	// TopicPrefix is the root of every doorlock topic.
	TopicPrefix = "doorlock"

	// TopicPrefixLock carries events about individual locks.
	TopicPrefixLock = "doorlock/lock"

	// TopicPrefixCheckIn carries heartbeats published by locks.
	TopicPrefixCheckIn = "doorlock/checkin"

	// TopicPrefixSystem carries service status.
	TopicPrefixSystem = "doorlock/system"
)

// Lock event names used as the last topic segment.
const (
	EventRegistered    = "registered"
	EventCheckIn       = "checkin"
	EventInvite        = "invite"
	EventAuthorization = "authorization"
	EventRelay         = "relay"
)

// Topics provides builders for doorlock MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.LockEvent("AA:BB:CC:DD:EE:FF", mqtt.EventRegistered)
//	// Returns: "doorlock/lock/AA:BB:CC:DD:EE:FF/registered"
type Topics struct{}

// LockEvent returns the topic for an event about one lock.
func (Topics) LockEvent(mac, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixLock, mac, event)
}

// AllLockEvents matches every lock event.
func (Topics) AllLockEvents() string {
	return TopicPrefixLock + "/+/+"
}

// LockCheckIn returns the heartbeat topic a lock publishes on.
//
// Example: doorlock/checkin/AA:BB:CC:DD:EE:FF
func (Topics) LockCheckIn(mac string) string {
	return TopicPrefixCheckIn + "/" + mac
}

// AllLockCheckIns matches every lock heartbeat.
func (Topics) AllLockCheckIns() string {
	return TopicPrefixCheckIn + "/+"
}

// ParseLockCheckIn extracts the MAC from a heartbeat topic.
func (Topics) ParseLockCheckIn(topic string) (string, bool) {
	mac, ok := strings.CutPrefix(topic, TopicPrefixCheckIn+"/")
	if !ok || mac == "" || strings.Contains(mac, "/") {
		return "", false
	}
	return mac, true
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
