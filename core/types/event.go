package types

// Event is a broadcastable record of a state change with string attributes.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
