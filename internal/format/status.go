// Package format maps backend values to display attributes.
package format

import "github.com/qaboard/dashboard/internal/qaapi"

// Display is the visual rendering of a status value.
type Display struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var displays = map[qaapi.Status]Display{
	qaapi.StatusSuccess: {Label: "SUCCESS", Color: "success", Icon: "fas fa-check"},
	qaapi.StatusFailure: {Label: "FAILURE", Color: "danger", Icon: "fas fa-times"},
	qaapi.StatusRunning: {Label: "RUNNING", Color: "warning", Icon: "fas fa-spinner fa-spin"},
	qaapi.StatusPending: {Label: "PENDING", Color: "info", Icon: "fas fa-clock"},
}

// Status returns the display for s. Unrecognized values get the pending display.
func Status(s qaapi.Status) Display {
	normalized, _ := s.Normalize()
	return displays[normalized]
}

// BadgeClass is the CSS class of the status badge.
func (d Display) BadgeClass() string {
	return "badge bg-" + d.Color
}
