// SPDX-License-Identifier: BSD-3-Clause

package eventbus

import "strings"

// natsSubject translates a publish topic into the wire subject used on the
// embedded NATS connection, namespaced under prefix so independent buses
// sharing one NATS server never see each other's traffic.
func natsSubject(prefix, topic string) string {
	return prefix + "." + topic
}

// topicFromSubject strips prefix back off a NATS subject to recover the
// original publish topic.
func topicFromSubject(prefix, subject string) string {
	return strings.TrimPrefix(subject, prefix+".")
}

// matches reports whether topic satisfies pattern under the dot-segment
// rules (§4.5): a bare "*" matches anything; a segment of "*" matches
// exactly one topic segment; any other segment must match literally.
func matches(pattern, topic string) bool {
	if pattern == "*" {
		return true
	}

	pSegs := strings.Split(pattern, ".")
	tSegs := strings.Split(topic, ".")
	if len(pSegs) != len(tSegs) {
		return false
	}
	for i, p := range pSegs {
		if p == "*" {
			continue
		}
		if p != tSegs[i] {
			return false
		}
	}
	return true
}
