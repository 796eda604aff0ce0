package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fastygo/taskify/domain"
)

func useBolt(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORAGE_DRIVER", "bolt")
	t.Setenv("BOLTDB_PATH", filepath.Join(dir, "taskify.db"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportThenExport(t *testing.T) {
	dir := useBolt(t)

	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	in := bundle{
		Tasks: []domain.Task{
			{ID: "t1", Title: "Plan", DueDate: due, Priority: domain.PriorityHigh, Status: domain.StatusTodo, SprintID: "s1"},
		},
		Sprints: []domain.Sprint{
			{ID: "s1", Name: "Sprint 1", StartDate: due, EndDate: due.AddDate(0, 0, 14), Tasks: []string{}},
		},
		Retrospectives: []domain.Retrospective{},
	}
	raw, _ := json.Marshal(in)
	file := filepath.Join(dir, "in.json")
	if err := os.WriteFile(file, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "snapshot", "import", file)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported 1 tasks, 1 sprints, 0 retrospectives") {
		t.Fatalf("import output = %q", out)
	}

	out, err = run(t, "snapshot", "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var got bundle
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode export %q: %v", out, err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != "t1" || !got.Tasks[0].DueDate.Equal(due) {
		t.Fatalf("tasks = %+v", got.Tasks)
	}
	if len(got.Sprints) != 1 || got.Sprints[0].Name != "Sprint 1" {
		t.Fatalf("sprints = %+v", got.Sprints)
	}
	if got.Retrospectives == nil {
		t.Fatal("retrospectives exported as null")
	}
}

func TestImportRejectsInvalidFile(t *testing.T) {
	dir := useBolt(t)

	cases := map[string]string{
		"duplicate ids":  `{"tasks":[{"id":"a","title":"x","priority":"low","status":"todo"},{"id":"a","title":"y","priority":"low","status":"todo"}]}`,
		"bad status":     `{"tasks":[{"id":"a","title":"x","priority":"low","status":"done"}]}`,
		"unnamed sprint": `{"sprints":[{"id":"s1","name":""}]}`,
		"not json":       `tasks`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			file := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".json")
			if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := run(t, "snapshot", "import", file); err == nil {
				t.Fatal("import accepted an invalid file")
			}
		})
	}
}

func TestExportEmptyStorage(t *testing.T) {
	useBolt(t)

	out, err := run(t, "snapshot", "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"tasks", "sprints", "retrospectives"} {
		if string(got[key]) != "[]" {
			t.Errorf("%s = %s, want []", key, got[key])
		}
	}
}

func TestUnknownDriverFlag(t *testing.T) {
	useBolt(t)
	if _, err := run(t, "--driver", "sqlite", "snapshot", "export"); err == nil {
		t.Fatal("unknown driver accepted")
	}
}
