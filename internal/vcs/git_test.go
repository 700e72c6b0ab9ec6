package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fuzz_parse.c"), []byte("int main(){}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("fuzz_parse.c"); err != nil {
		t.Fatal(err)
	}
	_, err = wt.Commit("Add parser fuzzer\n\nLonger body.", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Fuzz Dev",
			Email: "dev@example.com",
			When:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return dir
}

func TestHead(t *testing.T) {
	dir := initTestRepo(t)
	sub := filepath.Join(dir, "out")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	rev, err := Head(sub)
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if len(rev.Commit) != 40 {
		t.Errorf("Commit = %q, want a full hash", rev.Commit)
	}
	if len(rev.Short()) != 12 {
		t.Errorf("Short() = %q", rev.Short())
	}
	if rev.Author != "Fuzz Dev" {
		t.Errorf("Author = %q", rev.Author)
	}
	if rev.Subject != "Add parser fuzzer" {
		t.Errorf("Subject = %q", rev.Subject)
	}
	if rev.Date != "2026-03-04T05:06:07Z" {
		t.Errorf("Date = %q", rev.Date)
	}
	if rev.Branch != "master" {
		t.Errorf("Branch = %q, want master", rev.Branch)
	}
	if !rev.When().Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)) {
		t.Errorf("When() = %v", rev.When())
	}
}

func TestHead_NotRepository(t *testing.T) {
	_, err := Head(t.TempDir())
	if !errors.Is(err, ErrNotRepository) {
		t.Errorf("Head() error = %v, want ErrNotRepository", err)
	}
}
