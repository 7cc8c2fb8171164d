package trace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func appendRaw(path, line string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func TestLogAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Log("parse", "toy.trim", "toy.trim", "", nil, "", 1500*time.Microsecond); err != nil {
		t.Fatal(err)
	}
	if err := l.Log("resolve", "toy.trim.assemble", "toy.trim.assemble", "prev",
		[]string{"toy.trim"}, "", time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := l.Log("parse", "toy.bogus", "", "", nil, `unknown stage "bogus"`, 0); err != nil {
		t.Fatal(err)
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("read %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d", i, e.Seq)
		}
	}
	if entries[0].Duration != 1.5 {
		t.Errorf("duration = %v, want 1.5ms", entries[0].Duration)
	}
	if entries[1].Paths[0] != "toy.trim" || entries[1].Token != "prev" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].Error == "" {
		t.Error("error entry lost its message")
	}
}

func TestSequenceResumes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Log("parse", "toy.trim", "toy.trim", "", nil, "", 0); err != nil {
			t.Fatal(err)
		}
	}

	// A new logger over the same file continues counting.
	l2, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l2.Log("parse", "toy.dedup", "toy.dedup", "", nil, "", 0); err != nil {
		t.Fatal(err)
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := entries[len(entries)-1].Seq; got != 4 {
		t.Errorf("resumed seq = %d, want 4", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Errorf("got %v, want nil", entries)
	}
}

func TestReadCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Log("parse", "toy.trim", "toy.trim", "", nil, "", 0); err != nil {
		t.Fatal(err)
	}
	if err := appendRaw(path, "not json at all\n"); err != nil {
		t.Fatal(err)
	}

	entries, err := Read(path)
	if err == nil {
		t.Fatal("corrupt line read without error")
	}
	if len(entries) != 1 {
		t.Errorf("salvaged %d entries, want 1", len(entries))
	}
}
