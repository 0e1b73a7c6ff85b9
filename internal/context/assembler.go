package context

import (
	"iter"

	"github.com/stupiduntilnot/relaybot/internal/history"
)

// Baseline is the fixed system instruction every completion request
// starts from.
const Baseline = "You are a helpful, concise assistant that provides accurate and direct answers. Check all instructions before responding."

// Assembler combines the system instruction and conversation history into
// the final ordered message list.
type Assembler interface {
	Assemble(persona string, entries iter.Seq[history.Entry]) []Message
}

// StandardAssembler prepends a system message built from Baseline plus the
// session persona, then the history in chronological order. The newest user
// message is expected to already be in the history.
type StandardAssembler struct {
	Baseline string
}

// Assemble is a pure function of (baseline, persona, history snapshot).
func (a *StandardAssembler) Assemble(persona string, entries iter.Seq[history.Entry]) []Message {
	base := a.Baseline
	if base == "" {
		base = Baseline
	}
	system := base
	if persona != "" {
		system = base + " " + persona + "."
	}
	messages := []Message{{Role: "system", Content: system}}
	for e := range entries {
		messages = append(messages, Message{Role: string(e.Role), Content: e.Content})
	}
	return messages
}
