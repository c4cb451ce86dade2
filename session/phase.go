package session

import "fmt"

// Protocol phase of a client or server session.
type Phase uint8

const (
	// Client phases.
	Connecting Phase = iota
	AwaitingPoints
	AwaitingColors
	AwaitingFreshCamera

	// Server phases.
	Accepting
	Idle
	Rendering
	SendingPoints
	SendingColors

	Closed
)

var phaseNames = map[Phase]string{
	Connecting:          "Connecting",
	AwaitingPoints:      "AwaitingPoints",
	AwaitingColors:      "AwaitingColors",
	AwaitingFreshCamera: "AwaitingFreshCamera",
	Accepting:           "Accepting",
	Idle:                "Idle",
	Rendering:           "Rendering",
	SendingPoints:       "SendingPoints",
	SendingColors:       "SendingColors",
	Closed:              "Closed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}
