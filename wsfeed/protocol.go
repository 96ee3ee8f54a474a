// Package wsfeed streams stall events to WebSocket clients. It adapts
// the watchdog's listener capability to a broadcast fan-out with a
// bounded in-memory history, so a connecting client immediately sees the
// recent events.
package wsfeed

import (
	"time"

	"github.com/stallwatch/stallwatch/watchdog"
)

type MessageType string

const (
	// MsgSnapshot carries the recent event history, sent once when a
	// client connects.
	MsgSnapshot MessageType = "snapshot"

	// MsgStall carries newly detected stall events.
	MsgStall MessageType = "stall"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Events []StallPayload `json:"events"`
}

type StallBatchPayload struct {
	Events []StallPayload `json:"events"`
}

type StallPayload struct {
	BlockedForMillis int64         `json:"blockedForMillis"`
	DetectedAt       time.Time     `json:"detectedAt"`
	Units            []UnitPayload `json:"units"`
}

type UnitPayload struct {
	Name     string   `json:"name"`
	Group    string   `json:"group"`
	ID       uint64   `json:"id"`
	Priority int      `json:"priority"`
	Stack    []string `json:"stack"`
}

// payloadFromEvent flattens a stall event for the wire. Stack frames are
// pre-rendered: feed consumers display them, they don't analyse them.
func payloadFromEvent(ev *watchdog.StallEvent, at time.Time) StallPayload {
	units := make([]UnitPayload, 0, len(ev.Units))
	for _, u := range ev.Units {
		stack := make([]string, 0, len(u.Stack))
		for _, f := range u.Stack {
			stack = append(stack, f.String())
		}
		units = append(units, UnitPayload{
			Name:     u.Name,
			Group:    u.Group,
			ID:       u.ID,
			Priority: u.Priority,
			Stack:    stack,
		})
	}
	return StallPayload{
		BlockedForMillis: ev.BlockedFor.Milliseconds(),
		DetectedAt:       at,
		Units:            units,
	}
}
