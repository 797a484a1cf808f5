package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Interrupt is a suspension point waiting for a human reply.
type Interrupt struct {
	// ID is derived from (thread, run, index) so the same suspension always gets the same ID.
	ID      string          `json:"id"`
	Run     int             `json:"run"`
	Index   int             `json:"index"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var interruptNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hitch:interrupt"))

// InterruptID derives a stable interrupt ID.
func InterruptID(threadID string, run, index int) string {
	return uuid.NewSHA1(interruptNamespace, fmt.Appendf(nil, "%s/%d/%d", threadID, run, index)).String()
}

// Command is passed as input to Invoke to resume an interrupted thread.
type Command struct {
	Resume any `json:"resume"`
}
