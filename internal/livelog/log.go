package livelog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/chartermatch/internal/pkg/logger"
)

// The operator-log channels. The dashboard subscribes to these by name, so
// they are part of the external contract.
const (
	ChanInfo       = "info"
	ChanError      = "error"
	ChanWarning    = "warning"
	ChanCapacities = "capacities"
	ChanGPT        = "gpt"
	ChanExtra      = "extra"
	ChanTrash      = "trash_emails"
)

// Channels lists every valid channel, in dashboard order.
var Channels = []string{
	ChanInfo, ChanError, ChanWarning, ChanCapacities, ChanGPT, ChanExtra, ChanTrash,
}

var validChannels = func() map[string]bool {
	m := make(map[string]bool, len(Channels))
	for _, c := range Channels {
		m[c] = true
	}
	return m
}()

// timestampLayout prefixes every report except capacities rows, which the
// dashboard gauges parse as a bare "used,cap,name" triple.
const timestampLayout = "2006-01-02 15:04:05"

// Log formats reports and publishes them through the hub.
type Log struct {
	hub *Hub
	now func() time.Time
}

// New returns a Log publishing through hub.
func New(hub *Hub) *Log {
	return &Log{hub: hub, now: time.Now}
}

// Report formats a message onto the named channel. Reports on unknown
// channels are dropped with a process-log warning.
func (l *Log) Report(channel, format string, args ...interface{}) {
	if !validChannels[channel] {
		logger.Warn("report on unknown operator-log channel dropped", "channel", channel)
		return
	}
	msg := fmt.Sprintf(format, args...)
	if channel != ChanCapacities {
		msg = l.now().Format(timestampLayout) + ": " + msg
	}
	payload, err := json.Marshal(map[string]string{channel: msg})
	if err != nil {
		logger.Error("operator-log event marshal failed", "channel", channel, "error", err.Error())
		return
	}
	l.hub.Publish(Event{Channel: channel, Payload: payload})
}

// Infof reports on the info channel.
func (l *Log) Infof(format string, args ...interface{}) {
	l.Report(ChanInfo, format, args...)
}

// Warningf reports on the warning channel.
func (l *Log) Warningf(format string, args ...interface{}) {
	l.Report(ChanWarning, format, args...)
}

// Errorf reports on the error channel.
func (l *Log) Errorf(format string, args ...interface{}) {
	l.Report(ChanError, format, args...)
}
