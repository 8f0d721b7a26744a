package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// InitArgument is an opaque JSON initialization argument. Only its syntax is
// checked; the node interprets it.
type InitArgument json.RawMessage

// ParseInitArgument validates s as JSON. An empty (or blank) s means no argument.
func ParseInitArgument(s string) (InitArgument, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("%w: json argument is not valid JSON", ErrInvalidArgument)
	}
	return InitArgument(s), nil
}

// IsZero reports whether no argument is set.
func (a InitArgument) IsZero() bool {
	return len(a) == 0
}

// MarshalJSON emits the argument verbatim, or null when unset.
func (a InitArgument) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return []byte(a), nil
}

// UnmarshalJSON stores the raw value; null clears it.
func (a *InitArgument) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = nil
		return nil
	}
	*a = append((*a)[:0], data...)
	return nil
}

// ApplicationDescriptor describes a deployed application. It is created once
// per deployment and never modified afterwards.
type ApplicationDescriptor struct {
	ApplicationID string       `json:"applicationId"`
	BytecodeID    string       `json:"bytecodeId"`
	ChainID       string       `json:"chainId"`
	ContractPath  string       `json:"contractPath"`
	ServicePath   string       `json:"servicePath"`
	Argument      InitArgument `json:"argument,omitempty"`
	Confirmed     bool         `json:"confirmed"`
	CreatedAt     time.Time    `json:"createdAt"`
}
