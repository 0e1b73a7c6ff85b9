package context

import (
	"testing"

	"github.com/stupiduntilnot/relaybot/internal/history"
)

func bufferWith(entries ...history.Entry) *history.Buffer {
	b := history.NewBuffer(history.DefaultCapacity)
	for _, e := range entries {
		b.Append(e)
	}
	return b
}

func TestStandardAssembler_NoPersona(t *testing.T) {
	a := &StandardAssembler{}
	buf := bufferWith(
		history.Entry{Role: history.RoleUser, Content: "prev question"},
		history.Entry{Role: history.RoleAssistant, Content: "prev answer"},
	)
	result := a.Assemble("", buf.All())

	if len(result) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result))
	}
	if result[0].Role != "system" || result[0].Content != Baseline {
		t.Errorf("unexpected system message: %+v", result[0])
	}
	if result[1].Role != "user" || result[1].Content != "prev question" {
		t.Errorf("unexpected history[0]: %+v", result[1])
	}
	if result[2].Role != "assistant" || result[2].Content != "prev answer" {
		t.Errorf("unexpected history[1]: %+v", result[2])
	}
}

func TestStandardAssembler_PersonaAppendedAsSentence(t *testing.T) {
	a := &StandardAssembler{}
	buf := bufferWith(history.Entry{Role: history.RoleUser, Content: "hello"})
	result := a.Assemble("You are a pirate", buf.All())

	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}
	want := Baseline + " You are a pirate."
	if result[0].Content != want {
		t.Errorf("expected system %q, got %q", want, result[0].Content)
	}
}

func TestStandardAssembler_EmptyHistory(t *testing.T) {
	a := &StandardAssembler{}
	result := a.Assemble("", history.NewBuffer(3).All())

	if len(result) != 1 {
		t.Fatalf("expected only the system message, got %d", len(result))
	}
	if result[0].Role != "system" {
		t.Errorf("expected system role, got %q", result[0].Role)
	}
}

func TestStandardAssembler_CustomBaseline(t *testing.T) {
	a := &StandardAssembler{Baseline: "Be terse."}
	result := a.Assemble("Answer in French", history.NewBuffer(3).All())

	if result[0].Content != "Be terse. Answer in French." {
		t.Errorf("unexpected system content: %q", result[0].Content)
	}
}
