package manifest_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/starford/filerecords/internal/manifest"
	"github.com/starford/filerecords/internal/registry"
	"github.com/starford/filerecords/internal/testutil"
)

func build(t *testing.T) (*manifest.Manifest, *registry.Registry) {
	t.Helper()
	reg, dir := testutil.TestRegistry(t)
	if _, err := reg.AddComment("project files"); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if _, err := reg.AddGroup("review", "todo"); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	testutil.WriteFile(t, dir, "data_raw.csv", "a,b")
	testutil.WriteFile(t, dir, "docs/plan.md", "# plan")
	if _, err := reg.Add("data_raw.csv", "raw export", []string{"review"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := reg.Add("docs/plan.md", "", []string{"final"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	m, err := manifest.Build(reg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m, reg
}

func TestBuild(t *testing.T) {
	m, reg := build(t)
	if m.Directory != reg.Directory {
		t.Fatalf("Directory = %q", m.Directory)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(m.Entries))
	}
	e := m.Entries[0]
	if e.Name != "data_raw.csv" || e.Path != "data_raw.csv" {
		t.Fatalf("entry = %+v", e)
	}
	if !slices.Equal(e.Flags.Sorted(), []string{"group:review", "todo"}) {
		t.Fatalf("flags = %v", e.Flags.Sorted())
	}
}

func TestDocumentYAML(t *testing.T) {
	m, reg := build(t)
	data, err := m.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}

	var doc manifest.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, data)
	}
	if doc.Directory != reg.Directory {
		t.Fatalf("directory = %q", doc.Directory)
	}
	if len(doc.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(doc.Records))
	}
	plan, ok := doc.Records["docs/plan.md"]
	if !ok {
		t.Fatalf("records keys: %v", doc.Records)
	}
	if plan.Name != "plan.md" || !plan.Flags.Has("final") || len(plan.Comments) != 0 {
		t.Fatalf("plan = %+v", plan)
	}
	raw := doc.Records["data_raw.csv"]
	if len(raw.Comments) != 1 || raw.Comments[0].Text != "raw export" {
		t.Fatalf("raw comments = %+v", raw.Comments)
	}
	if len(doc.Comments) != 1 || !doc.Flags.Has("final") {
		t.Fatalf("registry part = %+v %v", doc.Comments, doc.Flags.Sorted())
	}
}

func TestReport(t *testing.T) {
	m, _ := build(t)
	report := m.Report(false)

	for _, want := range []string{
		"## Registry comments",
		"project files",
		"## Registered flags",
		"- final\n",
		"| review | todo, group:review |",
		"## Records",
		`### data\_raw.csv`,
		"### docs/plan.md",
		"raw export",
		"No comments",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report lacks %q", want)
		}
	}
	if strings.Contains(report, "#### Comments") {
		t.Error("manifest report should not carry per-record comment headings")
	}
}

func TestFragments(t *testing.T) {
	m, reg := build(t)
	rec := manifest.RecordMarkdown(m.Entries[1])
	if !strings.HasPrefix(rec, "### docs/plan.md\n\n- final\n\n#### Comments\n\nNo comments") {
		t.Fatalf("record fragment:\n%s", rec)
	}
	head := manifest.RegistryMarkdown(reg.Directory, reg.Meta())
	if strings.Contains(head, "## Records") {
		t.Fatalf("registry fragment includes records:\n%s", head)
	}
}

func TestWriteFiles(t *testing.T) {
	m, _ := build(t)
	out := t.TempDir()

	yamlPath := filepath.Join(out, "registry.yaml")
	if err := m.WriteYAML(yamlPath); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	mdPath := filepath.Join(out, "registry.md")
	if err := m.WriteMarkdown(mdPath); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read md: %v", err)
	}
	if !strings.HasPrefix(string(md), "# ") {
		t.Fatalf("markdown = %q", md)
	}
	if _, err := os.Stat(yamlPath); err != nil {
		t.Fatalf("yaml missing: %v", err)
	}
}

func TestWriteSQLite(t *testing.T) {
	m, _ := build(t)
	path := filepath.Join(t.TempDir(), "registry.db")

	// Writing twice replaces the database.
	for range 2 {
		if err := m.WriteSQLite(path); err != nil {
			t.Fatalf("WriteSQLite: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	count := func(query string, args ...any) int {
		t.Helper()
		var n int
		if err := db.QueryRow(query, args...).Scan(&n); err != nil {
			t.Fatalf("%s: %v", query, err)
		}
		return n
	}
	if n := count(`SELECT COUNT(*) FROM records`); n != 2 {
		t.Fatalf("records = %d, want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM flags WHERE record_id = ''`); n != 3 {
		t.Fatalf("registry flags = %d, want 3", n)
	}
	if n := count(`SELECT COUNT(*) FROM flags f JOIN records r ON r.id = f.record_id WHERE r.path = ?`, "data_raw.csv"); n != 2 {
		t.Fatalf("record flags = %d, want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM comments`); n != 2 {
		t.Fatalf("comments = %d, want 2", n)
	}
	if n := count(`SELECT COUNT(*) FROM flag_groups WHERE label = 'review'`); n != 2 {
		t.Fatalf("group rows = %d, want 2", n)
	}
}
