package fault

import (
	"errors"
	"fmt"
	"testing"
)

const sampleID = "abcdefghij1234567890"

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		msg  string
		want Category
	}{
		{"task " + sampleID + ": task timed out", Timeout},
		{"task " + sampleID + ": task not found", NotFound},
		{"task " + sampleID + ": task canceled: context canceled", Canceled},
		{"task " + sampleID + ": task panicked: runtime error", Panic},
		{"task " + sampleID + ": task failed: exit status 1", Failed},
		{"boom", Generic},
		{"", Generic},
		{"something went wrong talking to the scheduler", Generic},
	}
	for _, tt := range tests {
		got := Classify(tt.msg)
		if got.Category != tt.want {
			t.Errorf("Classify(%q).Category = %v, want %v", tt.msg, got.Category, tt.want)
		}
		if got.Message != tt.msg {
			t.Errorf("Classify(%q).Message = %q, want original message", tt.msg, got.Message)
		}
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// A message containing both phrases must resolve by rule order, not by
	// position in the message.
	msg := "task " + sampleID + ": task failed because the task timed out"
	if got := Classify(msg); got.Category != Timeout {
		t.Errorf("Category = %v, want Timeout (rule priority)", got.Category)
	}
}

func TestClassifyExtractsTaskID(t *testing.T) {
	got := Classify("task " + sampleID + ": task timed out after 5s")
	if got.TaskID != sampleID {
		t.Errorf("TaskID = %q, want %q", got.TaskID, sampleID)
	}
	if got.Category != Timeout {
		t.Errorf("Category = %v, want Timeout", got.Category)
	}
}

func TestClassifySkipsMalformedID(t *testing.T) {
	tests := []string{
		"boom",
		"task short: task failed",                     // id too short
		"task " + sampleID + " task failed",           // no colon at the fixed offset
		"task " + sampleID + "extra: task failed",     // colon past the fixed offset
		"task " + sampleID + ":",                      // nothing after the colon
		"atask " + sampleID + ": task failed",         // prefix not at start
	}
	for _, msg := range tests {
		if got := Classify(msg); got.TaskID != "" {
			t.Errorf("Classify(%q).TaskID = %q, want empty", msg, got.TaskID)
		}
	}
}

func TestAsTask(t *testing.T) {
	te := Classify("task " + sampleID + ": task canceled")
	wrapped := fmt.Errorf("await: %w", te)

	got, ok := AsTask(wrapped)
	if !ok {
		t.Fatal("AsTask(wrapped) = false, want true")
	}
	if got.Category != Canceled || got.TaskID != sampleID {
		t.Errorf("got %+v, want Canceled with id %s", got, sampleID)
	}

	if _, ok := AsTask(errors.New("plain")); ok {
		t.Error("AsTask(plain error) = true, want false")
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		c    Category
		want string
	}{
		{Timeout, "timeout"},
		{Failed, "failed"},
		{NotFound, "not_found"},
		{Canceled, "canceled"},
		{Panic, "panic"},
		{Generic, "generic"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}
