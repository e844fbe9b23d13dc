// Package mqtt provides the MQTT client used by the calibright bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained state
//   - Subscriptions that survive reconnects
//   - Last Will and Testament on the site status topic
//
// # Topics
//
// Every topic lives under calibright/{site}/:
//
//	display/{id}/set     commands for one display
//	display/{id}/state   retained brightness per display
//	brightness/set       commands for every display
//	status               retained online/offline, also the LWT
//	events/{type}        config reloads and other engine events
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Site: cfg.Site.ID})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
