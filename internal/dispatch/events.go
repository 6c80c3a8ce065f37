package dispatch

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// EventSink receives structured decision telemetry. Field names are stable
// identifiers consumed by offline analysis tooling; do not rename them.
type EventSink interface {
	Event(name string, fields map[string]interface{})
	Warn(name string, fields map[string]interface{})
}

// LogSink renders events as key=value pairs on the standard logger.
type LogSink struct{}

func render(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

func (LogSink) Event(name string, fields map[string]interface{}) {
	log.Printf("%s %s", name, render(fields))
}

func (LogSink) Warn(name string, fields map[string]interface{}) {
	log.Printf("WARN %s %s", name, render(fields))
}
