package bridge

import (
	"fmt"
	"strconv"
	"strings"
)

// Topics builds topic names under a prefix
type Topics struct {
	Prefix string
}

// Status carries online/offline, including the broker-published will
func (t Topics) Status() string { return t.Prefix + "/status" }

// Devices is the retained device list
func (t Topics) Devices() string { return t.Prefix + "/devices" }

// Connection is the retained connection state
func (t Topics) Connection() string { return t.Prefix + "/connection" }

// CC carries inbound values: <prefix>/cc/<channel>/<cc>
func (t Topics) CC(channel, cc uint8) string {
	return fmt.Sprintf("%s/cc/%d/%d", t.Prefix, channel, cc)
}

// Set is the wildcard for <prefix>/set/<controller>/<cc>
func (t Topics) Set() string { return t.Prefix + "/set/+/+" }

// Channel is the wildcard for <prefix>/channel/<controller>
func (t Topics) Channel() string { return t.Prefix + "/channel/+" }

// Connect takes a device id; an empty payload disconnects
func (t Topics) Connect() string { return t.Prefix + "/connect" }

// parseSet splits <prefix>/set/<controller>/<cc>
func (t Topics) parseSet(topic string) (controllerID string, cc int, ok bool) {
	parts, ok := t.split(topic, "set", 2)
	if !ok {
		return "", 0, false
	}
	cc, err := strconv.Atoi(parts[1])
	if err != nil || cc < 0 || cc > 127 {
		return "", 0, false
	}
	return parts[0], cc, true
}

// parseChannel splits <prefix>/channel/<controller>
func (t Topics) parseChannel(topic string) (string, bool) {
	parts, ok := t.split(topic, "channel", 1)
	if !ok {
		return "", false
	}
	return parts[0], true
}

func (t Topics) split(topic, kind string, n int) ([]string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/"+kind+"/")
	if !ok {
		return nil, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != n {
		return nil, false
	}
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}
