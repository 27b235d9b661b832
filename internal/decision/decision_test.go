package decision

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAndAnswerRoundTrip(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	id, err := q.Create("merge now or wait for CI?", []string{"merge", "wait"}, "", 0, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := q.Answer(id, "merge", "alice"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	answer, err := q.Await(id, time.Second)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if answer != "merge" {
		t.Errorf("expected answer 'merge', got %q", answer)
	}
}

func TestAnswerRejectsOptionNotOffered(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id, err := q.Create("pick one", []string{"a", "b"}, "", 0, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := q.Answer(id, "c", "alice"); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
}

func TestIdenticalReplayedAnswerIsNoOp(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id, err := q.Create("pick one", []string{"a", "b"}, "", 0, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := q.Answer(id, "a", "alice"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := q.Answer(id, "a", "alice"); err != nil {
		t.Fatalf("expected identical replayed answer to be a no-op, got: %v", err)
	}
}

func TestConflictingSecondAnswerIsRejected(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id, err := q.Create("pick one", []string{"a", "b"}, "", 0, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := q.Answer(id, "a", "alice"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := q.Answer(id, "b", "bob"); !errors.Is(err, ErrConflictingAnswer) {
		t.Fatalf("expected ErrConflictingAnswer for a distinct second answer, got %v", err)
	}
}

func TestAwaitTimesOutWithoutDefault(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id, err := q.Create("pick one", []string{"a", "b"}, "", 1, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := q.Await(id, 50*time.Millisecond); !errors.Is(err, ErrAwaitTimeout) {
		t.Fatalf("expected ErrAwaitTimeout, got %v", err)
	}
}

func TestAwaitAppliesDefaultAnswerOnTimeout(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	def := "wait"
	id, err := q.Create("merge now or wait for CI?", []string{"merge", "wait"}, "", 1, &def, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	answer, err := q.Await(id, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if answer != "wait" {
		t.Errorf("expected default answer 'wait' applied on timeout, got %q", answer)
	}
}

func TestCancelPreventsFurtherAnswers(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id, err := q.Create("pick one", []string{"a", "b"}, "", 0, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := q.Cancel(id, "feature abandoned"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := q.Answer(id, "a", "alice"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending after cancel, got %v", err)
	}
}

func TestAwaitWakesOnAnswerFasterThanPollInterval(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id, err := q.Create("pick one", []string{"a", "b"}, "", 0, nil, "w1", "f1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		if err := q.Answer(id, "a", "alice"); err != nil {
			t.Errorf("answer: %v", err)
		}
	}()

	start := time.Now()
	answer, err := q.Await(id, time.Minute)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if answer != "a" {
		t.Errorf("expected answer 'a', got %q", answer)
	}
	if elapsed := time.Since(start); elapsed >= pollInterval {
		t.Errorf("expected the fsnotify wake to beat the %s poll interval, took %s", pollInterval, elapsed)
	}
}

func TestPendingListsOnlyPendingRecords(t *testing.T) {
	q, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	id1, _ := q.Create("q1", []string{"a"}, "", 0, nil, "w1", "f1")
	id2, _ := q.Create("q2", []string{"a"}, "", 0, nil, "w1", "f2")
	if err := q.Answer(id2, "a", "alice"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	pending, err := q.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id1 {
		t.Fatalf("expected only %s pending, got %v", id1, pending)
	}
}
