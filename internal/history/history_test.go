package history

import (
	"fmt"
	"testing"
)

func collect(b *Buffer) []Entry {
	var out []Entry
	for e := range b.All() {
		out = append(out, e)
	}
	return out
}

func TestBuffer_AppendAndOrder(t *testing.T) {
	b := NewBuffer(5)
	b.Append(Entry{Role: RoleUser, Content: "q1"})
	b.Append(Entry{Role: RoleAssistant, Content: "a1"})

	got := collect(b)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Role != RoleUser || got[0].Content != "q1" {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Content != "a1" {
		t.Errorf("unexpected second entry: %+v", got[1])
	}
}

func TestBuffer_EvictsOldestBeyondCapacity(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 17; i++ {
		b.Append(Entry{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	if b.Len() != 10 {
		t.Fatalf("expected length 10, got %d", b.Len())
	}
	got := collect(b)
	// The retained entries are exactly the last 10 appended, in order.
	for i, e := range got {
		want := fmt.Sprintf("m%d", i+7)
		if e.Content != want {
			t.Fatalf("entry %d: expected %q, got %q", i, want, e.Content)
		}
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer(3)
	b.Append(Entry{Role: RoleUser, Content: "x"})
	b.Clear()
	if !b.IsEmpty() {
		t.Fatal("expected empty buffer after clear")
	}
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("expected length 0 after double clear, got %d", b.Len())
	}
}

func TestBuffer_AllIsSnapshot(t *testing.T) {
	b := NewBuffer(3)
	b.Append(Entry{Role: RoleUser, Content: "before"})
	seq := b.All()
	b.Append(Entry{Role: RoleAssistant, Content: "after"})

	var first []Entry
	for e := range seq {
		first = append(first, e)
	}
	if len(first) != 1 || first[0].Content != "before" {
		t.Fatalf("snapshot observed later mutation: %+v", first)
	}

	// Restartable: a second pass yields the same snapshot.
	var second []Entry
	for e := range seq {
		second = append(second, e)
	}
	if len(second) != 1 || second[0].Content != "before" {
		t.Fatalf("second pass differs: %+v", second)
	}
}

func TestBuffer_DefaultCapacity(t *testing.T) {
	b := NewBuffer(0)
	for i := 0; i < DefaultCapacity+3; i++ {
		b.Append(Entry{Role: RoleUser, Content: "m"})
	}
	if b.Len() != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, b.Len())
	}
}
