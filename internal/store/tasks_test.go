package store

import (
	"testing"
)

func testOwner() OwnerRef {
	return OwnerRef{Kind: OwnerTeam, ID: "team-1"}
}

func TestClaimNextTaskFIFO(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "worker", "")

	var queued []string
	for _, text := range []string{"first", "second", "third"} {
		task, err := s.EnqueueTask(testOwner(), a.ID, "", text, SourceUser)
		if err != nil {
			t.Fatalf("enqueue %q: %v", text, err)
		}
		queued = append(queued, task.TaskID)
	}

	for i, want := range queued {
		task, err := s.ClaimNextTask(a.ID)
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if task == nil {
			t.Fatalf("claim %d: expected a task", i)
		}
		if task.TaskID != want {
			t.Fatalf("claim %d: expected %s, got %s", i, want, task.TaskID)
		}
		if task.Status != TaskInProgress {
			t.Fatalf("claim %d: expected in_progress, got %s", i, task.Status)
		}
	}

	// Queue drained; claimed tasks are never handed out again.
	task, err := s.ClaimNextTask(a.ID)
	if err != nil {
		t.Fatalf("claim empty: %v", err)
	}
	if task != nil {
		t.Fatalf("expected empty queue, got %s", task.TaskID)
	}
}

func TestClaimSkipsOtherAgents(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "a", "")
	b := newTestAgent(t, s, "b", "")

	if _, err := s.EnqueueTask(testOwner(), b.ID, "", "b's work", SourceUser); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, err := s.ClaimNextTask(a.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if task != nil {
		t.Fatalf("agent a claimed agent b's task %s", task.TaskID)
	}
}

func TestCompleteAndFailStampCompletion(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "worker", "")

	done, _ := s.EnqueueTask(testOwner(), a.ID, "", "finish me", SourceUser)
	broken, _ := s.EnqueueTask(testOwner(), a.ID, "", "break me", SourceUser)

	if err := s.CompleteTask(done.TaskID, "all good"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := s.GetTaskByID(done.TaskID)
	if got.Status != TaskCompleted || got.Result != "all good" {
		t.Fatalf("unexpected completed task: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}

	if err := s.FailTask(broken.TaskID, "model unavailable"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ = s.GetTaskByID(broken.TaskID)
	if got.Status != TaskFailed || got.ErrorText != "model unavailable" {
		t.Fatalf("unexpected failed task: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped on failure")
	}

	if err := s.CompleteTask("missing-id", "x"); err == nil {
		t.Fatal("expected error completing unknown task")
	}
}

func TestCompleteTaskWithReply(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "worker", "")
	conv, err := s.GetOrCreateConversation(a.ID, ModeBackground)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}

	task, _ := s.EnqueueTask(testOwner(), a.ID, "", "summarize the report", SourceUser)
	if err := s.CompleteTaskWithReply(task.TaskID, conv.ID, "The report says X."); err != nil {
		t.Fatalf("complete with reply: %v", err)
	}

	got, _ := s.GetTaskByID(task.TaskID)
	if got.Status != TaskCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	messages, err := s.ListMessages(conv.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != RoleAssistant || messages[0].Content != "The report says X." {
		t.Fatalf("unexpected messages: %+v", messages)
	}

	// Unknown task must not leave a stray message behind.
	if err := s.CompleteTaskWithReply("missing-id", conv.ID, "oops"); err == nil {
		t.Fatal("expected error for unknown task")
	}
	messages, _ = s.ListMessages(conv.ID)
	if len(messages) != 1 {
		t.Fatalf("expected no extra message, got %d", len(messages))
	}
}

func TestQueueStatus(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t, s, "worker", "")

	qs, err := s.QueueStatus(a.ID)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if qs.HasWork {
		t.Fatal("expected empty queue")
	}

	t1, _ := s.EnqueueTask(testOwner(), a.ID, "", "one", SourceUser)
	if _, err := s.EnqueueTask(testOwner(), a.ID, "", "two", SourceUser); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.ClaimNextTask(a.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	qs, _ = s.QueueStatus(a.ID)
	if qs.Pending != 1 || qs.InProgress != 1 || !qs.HasWork {
		t.Fatalf("unexpected status: %+v", qs)
	}

	if err := s.CompleteTask(t1.TaskID, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	qs, _ = s.QueueStatus(a.ID)
	if qs.InProgress != 0 || qs.Pending != 1 {
		t.Fatalf("unexpected status after completion: %+v", qs)
	}
}

func TestEnqueueValidation(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.EnqueueTask(OwnerRef{}, "agent", "", "x", SourceUser); err == nil {
		t.Fatal("expected error for zero owner")
	}
	if _, err := s.EnqueueTask(testOwner(), "", "", "x", SourceUser); err == nil {
		t.Fatal("expected error for missing assignee")
	}
}
