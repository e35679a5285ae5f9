package manifest

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/filerecords/internal/models"
)

// Report renders the manifest as Markdown: the registry section followed by
// one section per record.
func (m *Manifest) Report(withTimestamp bool) string {
	var b strings.Builder
	var generated time.Time
	if withTimestamp {
		generated = m.Generated
	}
	writeRegistry(&b, m.Directory, m.Meta, generated)
	b.WriteString("\n## Records\n\n")
	for _, e := range m.Entries {
		writeRecord(&b, e, false)
	}
	return b.String()
}

// RegistryMarkdown renders the registry's own comments, flags and groups.
func RegistryMarkdown(directory string, meta models.RegistryMeta) string {
	var b strings.Builder
	writeRegistry(&b, directory, meta, time.Time{})
	return b.String()
}

// RecordMarkdown renders a single record with a comments heading.
func RecordMarkdown(e Entry) string {
	var b strings.Builder
	writeRecord(&b, e, true)
	return b.String()
}

func writeRegistry(b *strings.Builder, directory string, meta models.RegistryMeta, generated time.Time) {
	fmt.Fprintf(b, "# %s\n\n", escape(directory))
	if !generated.IsZero() {
		fmt.Fprintf(b, "%s\n\n", generated.Local().Format(models.DisplayLayout))
	}

	b.WriteString("## Registry comments\n\n")
	for _, c := range meta.Comments.Sorted() {
		writeComment(b, c)
	}

	b.WriteString("## Registered flags\n\n")
	for _, f := range meta.Flags.Sorted() {
		fmt.Fprintf(b, "- %s\n", f)
	}
	b.WriteString("\n")

	b.WriteString("### Flag groups\n\n")
	b.WriteString("| Group | Flags |\n")
	b.WriteString("|------|------|\n")
	for _, label := range meta.Groups.Labels() {
		fmt.Fprintf(b, "| %s | %s |\n", label, strings.Join(meta.Groups[label], ", "))
	}
}

func writeRecord(b *strings.Builder, e Entry, commentsHeader bool) {
	fmt.Fprintf(b, "### %s\n\n", escape(e.Path))

	flags := e.Flags.Sorted()
	if len(flags) == 0 {
		b.WriteString("- No flags\n\n")
	} else {
		fmt.Fprintf(b, "- %s\n\n", strings.Join(flags, "\n- "))
	}

	if commentsHeader {
		b.WriteString("#### Comments\n\n")
	}
	if len(e.Comments) == 0 {
		b.WriteString("No comments\n\n")
		return
	}
	for _, c := range e.Comments.Sorted() {
		writeComment(b, c)
	}
}

func writeComment(b *strings.Builder, c models.Comment) {
	fmt.Fprintf(b, "**%s** (%s): %s\n\n", c.User, c.Timestamp.Local().Format(models.DisplayLayout), c.Text)
}

// escape keeps underscores in file names from turning into emphasis.
func escape(s string) string {
	return strings.ReplaceAll(s, "_", `\_`)
}
