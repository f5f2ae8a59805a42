package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/me/blogfront/internal/forms"
	"github.com/me/blogfront/pkg/model"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	}
	return fmt.Errorf("invalid output format %q (want table, json or yaml)", format)
}

// render writes v as JSON or YAML, or calls table for the human format.
func (a *app) render(v any, table func(w io.Writer)) error {
	switch a.flagOutput {
	case outputJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		table(a.stdout)
		return nil
	}
}

// message prints a status line in table mode only, so structured output
// stays parseable.
func (a *app) message(format string, args ...any) {
	if a.flagOutput != outputTable {
		return
	}
	fmt.Fprintf(a.stdout, format+"\n", args...)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func ago(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return humanize.Time(ts.Time)
}

func exactTime(ts model.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}

// imageSize returns the decoded image size, or "-" when there is none.
func imageSize(p *model.Post) string {
	if !p.HasImage() {
		return "-"
	}
	data, err := p.DecodeImage()
	if err != nil {
		return "invalid"
	}
	return humanize.Bytes(uint64(len(data)))
}

func printPostTable(w io.Writer, posts []model.Post) {
	fmt.Fprintf(w, "%-6s  %-40s  %-16s  %-16s  %s\n", "ID", "TITLE", "AUTHOR", "CREATED", "IMAGE")
	fmt.Fprintf(w, "%-6s  %-40s  %-16s  %-16s  %s\n", "--", "-----", "------", "-------", "-----")
	for i := range posts {
		p := &posts[i]
		fmt.Fprintf(w, "%-6d  %-40s  %-16s  %-16s  %s\n",
			p.ID, truncate(p.Title, 40), truncate(p.AuthorName(), 16), ago(p.CreatedAt), imageSize(p))
	}
}

func printPost(w io.Writer, p *model.Post) {
	fmt.Fprintf(w, "%s\n", p.Title)
	fmt.Fprintf(w, "  ID:      %d\n", p.ID)
	fmt.Fprintf(w, "  Author:  %s\n", p.AuthorName())
	fmt.Fprintf(w, "  Created: %s (%s)\n", exactTime(p.CreatedAt), ago(p.CreatedAt))
	if p.Edited() {
		fmt.Fprintf(w, "  Edited:  %s (%s)\n", exactTime(p.UpdatedAt), ago(p.UpdatedAt))
	}
	if p.HasImage() {
		if data, err := p.DecodeImage(); err == nil {
			fmt.Fprintf(w, "  Image:   %s, %s\n", forms.ImageType(data), humanize.Bytes(uint64(len(data))))
		} else {
			fmt.Fprintf(w, "  Image:   invalid\n")
		}
	}
	fmt.Fprintf(w, "\n%s\n", p.Content)
}
