package specdoc

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeSummary describes how a spec changed between two versions.
type ChangeSummary struct {
	Inserted     int // characters
	Deleted      int // characters
	LinesAdded   int
	LinesRemoved int
}

// Empty reports whether the two versions were identical.
func (c ChangeSummary) Empty() bool {
	return c.Inserted == 0 && c.Deleted == 0
}

func (c ChangeSummary) String() string {
	if c.Empty() {
		return "no changes"
	}
	return fmt.Sprintf("+%d/-%d lines (%d chars inserted, %d removed)",
		c.LinesAdded, c.LinesRemoved, c.Inserted, c.Deleted)
}

// SummarizeChange diffs two spec versions.
func SummarizeChange(before, after string) ChangeSummary {
	var s ChangeSummary
	if before == after {
		return s
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			s.Deleted += len(d.Text)
		}
	}

	a, b, lines := dmp.DiffLinesToChars(before, after)
	lineDiffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range lineDiffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.LinesAdded += n
		case diffmatchpatch.DiffDelete:
			s.LinesRemoved += n
		}
	}
	return s
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
