package mqtt

import "strings"

// MatchTopic reports whether topic is matched by an MQTT subscription filter.
// Wildcards at the first level never match topics starting with '$'.
func MatchTopic(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	if strings.HasPrefix(topic, "$") && (fl[0] == "#" || fl[0] == "+") {
		return false
	}

	for i, f := range fl {
		switch {
		case f == "#":
			return true
		case i >= len(tl):
			return false
		case f == "+":
		case f != tl[i]:
			return false
		}
	}
	return len(fl) == len(tl)
}
