package dashboard

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// HoverStatus is the state of the map pointer.
type HoverStatus string

const (
	HoverIdle     HoverStatus = "idle"
	HoverHovering HoverStatus = "hovering"
)

// Hover is the map hover state machine: idle -> hovering(uf) -> idle.
// Tooltip is only set while hovering a state that has statistics.
type Hover struct {
	Status  HoverStatus `json:"status"`
	StateID int64       `json:"uf,omitempty"`
	Tooltip string      `json:"tooltip,omitempty"`
}

// Enter moves to hovering over the given state. Entering another state
// while hovering replaces the target.
func (h Hover) Enter(stateID int64) Hover {
	return Hover{Status: HoverHovering, StateID: stateID}
}

// Leave returns to idle.
func (h Hover) Leave() Hover {
	return Hover{Status: HoverIdle}
}

// IsHovering reports whether a state is under the pointer.
func (h Hover) IsHovering() bool {
	return h.Status == HoverHovering
}

var printer = message.NewPrinter(language.BrazilianPortuguese)

// FormatNumber renders n with pt-BR digit grouping.
func FormatNumber(n int64) string {
	return printer.Sprintf("%d", n)
}

func tooltip(name string, total int64) string {
	return name + ": " + FormatNumber(total)
}
