package models

import "fmt"

// ChatMode selects how much follow-up tooling a reply offers
type ChatMode string

const (
	ModeConversation ChatMode = "conversation"
	ModeExplorer     ChatMode = "explorer"
)

// ChatRequest is the inbound chat contract
type ChatRequest struct {
	Message string   `json:"message"`
	Mode    ChatMode `json:"mode,omitempty"`
}

// Normalize fills in the default chat mode
func (r ChatRequest) Normalize() ChatRequest {
	if r.Mode != ModeExplorer {
		r.Mode = ModeConversation
	}
	return r
}

// ChatResponse is the outbound chat contract
type ChatResponse struct {
	Content string   `json:"content"`
	Actions []Action `json:"actions"`
}

// ActionKind is the closed set of follow-up actions a reply can suggest
type ActionKind int

const (
	ActionChart ActionKind = iota
	ActionMap
	ActionTable
	ActionExport
	ActionBroaden
)

// ActionKinds lists every action kind in declaration order
var ActionKinds = []ActionKind{ActionChart, ActionMap, ActionTable, ActionExport, ActionBroaden}

func (k ActionKind) String() string {
	switch k {
	case ActionChart:
		return "chart"
	case ActionMap:
		return "map"
	case ActionTable:
		return "table"
	case ActionExport:
		return "export"
	case ActionBroaden:
		return "broaden"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// MarshalText encodes the kind as its wire name
func (k ActionKind) MarshalText() ([]byte, error) {
	for _, known := range ActionKinds {
		if k == known {
			return []byte(k.String()), nil
		}
	}
	return nil, fmt.Errorf("unknown action kind %d", int(k))
}

// UnmarshalText decodes a wire name
func (k *ActionKind) UnmarshalText(b []byte) error {
	for _, known := range ActionKinds {
		if known.String() == string(b) {
			*k = known
			return nil
		}
	}
	return fmt.Errorf("unknown action kind %q", string(b))
}

// Action is a suggested follow-up for the caller's UI
type Action struct {
	Type  ActionKind     `json:"type"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data"`
}
