package manual

import (
	"testing"
	"time"

	"carbroker/internal/domain"
)

func TestChatQueue_FIFO(t *testing.T) {
	q := &chatQueue{}
	for _, body := range []string{"first", "second", "third"} {
		q.push(ChatMessage{From: "M.bob", Body: body, ReceivedAt: time.Now()})
	}

	m, ok := q.poll()
	if !ok || m.Body != "first" {
		t.Fatalf("got %+v ok=%v", m, ok)
	}

	rest := q.drain()
	if len(rest) != 2 || rest[0].Body != "second" || rest[1].Body != "third" {
		t.Errorf("drain = %+v", rest)
	}

	if _, ok := q.poll(); ok {
		t.Error("queue should be empty after drain")
	}
	if got := q.drain(); len(got) != 0 {
		t.Errorf("second drain = %+v", got)
	}
}

func TestStatusBoard_Snapshot(t *testing.T) {
	b := newStatusBoard()
	b.set("M.bob", statusAwaiting)
	b.set("M.bob", statusFinalized)
	b.set("M.carol", statusRejected)

	snap := b.snapshot()
	if snap["M.bob"] != statusFinalized {
		t.Errorf("M.bob = %q", snap["M.bob"])
	}
	if snap["M.carol"] != statusRejected {
		t.Errorf("M.carol = %q", snap["M.carol"])
	}

	// The snapshot is a copy.
	snap[domain.PartyID("M.dave")] = "intruder"
	if _, ok := b.snapshot()["M.dave"]; ok {
		t.Error("mutating the snapshot leaked into the board")
	}
}
