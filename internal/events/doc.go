// Package events fans lock lifecycle notifications out to MQTT and InfluxDB,
// and feeds lock heartbeats received over MQTT back into the lock registry.
//
// Emitter implements the notification interfaces of the lock, invite and
// relay packages. Notifications are queued and published by a single worker
// so callers never wait on the broker; when the queue is full the event is
// dropped and counted.
package events
