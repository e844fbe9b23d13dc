// Package bridge connects the brightness engine to MQTT.
//
// Commands arrive on calibright/{site}/display/{id}/set and
// calibright/{site}/brightness/set. A payload is either a bare number
// ("42") or a JSON object with exactly one of "brightness" or "delta":
//
//	{"brightness": 42}
//	{"delta": -10}
//
// After every successful set the bridge publishes the display's logical
// brightness, retained, on calibright/{site}/display/{id}/state. A removed
// display has its retained state cleared.
package bridge
