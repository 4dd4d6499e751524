// Package mqtt provides the broker connection used by the Instar bridge.
//
// It wraps paho.mqtt.golang with:
//   - auto-reconnect with subscription restoration
//   - a retained health status with last-will offline detection
//   - panic-recovering message handlers
//   - topic builders for camera and core event topics
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, "instar")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.InstarAll("instar"), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
//
// Handlers run concurrently. Messages for the same camera are not
// serialised by this package.
package mqtt
