package banlist_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"cardroom/internal/banlist"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	l, err := banlist.Load(filepath.Join(t.TempDir(), "bans.txt"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Contains("anything") {
		t.Fatal("empty list contains a name")
	}
}

func TestAddPersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	l, err := banlist.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := l.Add("NoGambling"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add("quietplace"); err != nil {
		t.Fatalf("add: %v", err)
	}

	reloaded, err := banlist.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Contains("nogambling") || !reloaded.Contains("NOGAMBLING") {
		t.Fatal("ban lost or case-sensitive after reload")
	}
	if got, want := reloaded.All(), []string{"nogambling", "quietplace"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("All = %v, want %v", got, want)
	}
}

func TestRemoveRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	l, err := banlist.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := l.Add("spamhole"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Remove("SpamHole"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if l.Contains("spamhole") {
		t.Fatal("removed name still banned")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("file not rewritten: %q", data)
	}
}

func TestLoadSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bans.txt")
	if err := os.WriteFile(path, []byte("alpha\n\n  beta  \n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	l, err := banlist.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := l.All(), []string{"alpha", "beta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("All = %v, want %v", got, want)
	}
}
