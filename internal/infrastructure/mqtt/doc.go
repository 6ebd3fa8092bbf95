// Package mqtt connects doorlock-core to an MQTT broker.
//
// The broker carries two kinds of traffic:
//   - lock lifecycle events published by the core (registrations, check-ins,
//     invite creation, grants, relay evictions) for dashboards and other
//     services to consume
//   - lock heartbeats, where a lock announces its current address on
//     doorlock/checkin/{MAC} instead of calling the HTTP check-in endpoint
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration after reconnects, a Last Will on doorlock/system/status and
// panic recovery around message handlers.
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) outside local development
//   - Invite ids and key material are never published
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllLockCheckIns(), 1,
//	    func(topic string, payload []byte) error {
//	        mac, _ := mqtt.Topics{}.ParseLockCheckIn(topic)
//	        return handle(mac, payload)
//	    })
package mqtt
