// Package engine is the detection-and-decision pipeline: it consumes chat
// events (messages, thread creations, avatar changes, member joins), runs the
// keyword, repeat, QR, and avatar detectors, escalates signals to a sanction
// tier, and hands concrete enforcement requests to external collaborators.
//
// Each inbound event is processed independently and concurrently. Failures in
// one event's pipeline never affect another; detector failures degrade to
// no-signal outcomes rather than aborting processing.
package engine
