package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every calibright topic.
const TopicPrefix = "calibright"

// Topics builds the MQTT topics for one site. The site id keeps several
// machines on one broker apart.
//
//	topics := mqtt.Topics{Site: "office"}
//	topics.DisplayState("ddcci6") // "calibright/office/display/ddcci6/state"
type Topics struct {
	Site string
}

func (t Topics) base() string {
	return TopicPrefix + "/" + t.Site
}

// DisplaySet is the command topic for one display.
//
// Example: calibright/office/display/ddcci6/set
func (t Topics) DisplaySet(id string) string {
	return fmt.Sprintf("%s/display/%s/set", t.base(), id)
}

// DisplayState is the retained state topic for one display.
//
// Example: calibright/office/display/ddcci6/state
func (t Topics) DisplayState(id string) string {
	return fmt.Sprintf("%s/display/%s/state", t.base(), id)
}

// AllDisplaySets matches DisplaySet for every display.
func (t Topics) AllDisplaySets() string {
	return t.base() + "/display/+/set"
}

// BrightnessSet is the command topic for every display at once.
//
// Example: calibright/office/brightness/set
func (t Topics) BrightnessSet() string {
	return t.base() + "/brightness/set"
}

// Status is the retained online/offline topic, also used for the LWT.
//
// Example: calibright/office/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Events carries engine events that are not state, such as config
// reloads.
//
// Example: calibright/office/events/config.reloaded
func (t Topics) Events(eventType string) string {
	return fmt.Sprintf("%s/events/%s", t.base(), eventType)
}

// All matches every topic for the site.
func (t Topics) All() string {
	return t.base() + "/#"
}

// DisplayFromTopic extracts the display id from a DisplaySet or
// DisplayState topic. ok is false for any other topic.
func (t Topics) DisplayFromTopic(topic string) (id string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.base()+"/display/")
	if !found {
		return "", false
	}
	id, _, found = strings.Cut(rest, "/")
	if !found || id == "" {
		return "", false
	}
	return id, true
}
