package journal

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	entries := []Entry{
		{
			Time:        time.Unix(1_700_000_000, 0).UTC(),
			Op:          OpScheduleCreated,
			Engine:      "primary",
			Caller:      "0xowner",
			ScheduleID:  "vs:abc",
			Beneficiary: "0xholder",
			Amount:      "1000",
			Details:     map[string]string{"from_locked": "false"},
		},
		{
			Time:   time.Unix(1_700_000_100, 0).UTC(),
			Op:     OpTokensReleased,
			Engine: "primary",
			Amount: "50",
		},
	}
	for _, e := range entries {
		if err := w.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	if got := strings.Count(buf.String(), "\n"); got != 2 {
		t.Fatalf("expected one line per entry, got %d lines", got)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Op != OpScheduleCreated || got[0].Amount != "1000" {
		t.Fatalf("first entry mangled: %+v", got[0])
	}
	if got[0].Details["from_locked"] != "false" {
		t.Fatalf("details mangled: %+v", got[0].Details)
	}
	if got[1].Op != OpTokensReleased {
		t.Fatalf("second entry mangled: %+v", got[1])
	}
}

func TestReadSkipsBlankLines(t *testing.T) {
	in := strings.NewReader("\n{\"op\":\"withdrawal\"}\n\n")
	got, err := Read(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Op != OpWithdrawal {
		t.Fatalf("got %+v", got)
	}
}

func TestReadRejectsMalformedLine(t *testing.T) {
	in := strings.NewReader("{\"op\":\"withdrawal\"}\nnot json\n")
	_, err := Read(in)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("got %v, want line 2 error", err)
	}
}

func TestFileAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	for i := 0; i < 2; i++ {
		w, err := OpenFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Record(Entry{Op: OpPoolLocked}); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	// Reopening appends instead of truncating.
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
}
