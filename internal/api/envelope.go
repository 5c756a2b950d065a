package api

import (
	"encoding/json"
	"sort"
)

// Envelope is the wire shape every endpoint responds with. Data must not be
// read unless Success is true; on failure the server may omit it entirely.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// failureMessage picks the most specific human-readable message out of a
// failed envelope. Field-level validation messages win over the top-level
// message; keys are walked in sorted order so the pick is deterministic.
func (e *Envelope) failureMessage() string {
	if len(e.Errors) > 0 {
		keys := make([]string, 0, len(e.Errors))
		for k := range e.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if msgs := e.Errors[k]; len(msgs) > 0 && msgs[0] != "" {
				return msgs[0]
			}
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return "The request could not be completed."
}
