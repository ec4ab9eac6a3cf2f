package specdoc

import (
	"testing"
)

// =============================================================================
// ApplyPatches
// =============================================================================

func TestApplyPatches(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		text  string
		patch Patch
		want  string
	}{
		{
			name:  "first occurrence only",
			text:  "hello world hello",
			patch: Patch{Patches: []PatchItem{{Find: "hello", Replace: "hi"}}},
			want:  "hi world hello",
		},
		{
			name:  "missing find is a no-op",
			text:  "hello",
			patch: Patch{Patches: []PatchItem{{Find: "absent", Replace: "x"}}},
			want:  "hello",
		},
		{
			name: "sequential against running result",
			text: "a",
			patch: Patch{Patches: []PatchItem{
				{Find: "a", Replace: "b"},
				{Find: "b", Replace: "c"},
			}},
			want: "c",
		},
		{
			name:  "empty patch list",
			text:  "unchanged",
			patch: Patch{},
			want:  "unchanged",
		},
		{
			name:  "replacement text is literal",
			text:  "price: X",
			patch: Patch{Patches: []PatchItem{{Find: "X", Replace: "$1.00"}}},
			want:  "price: $1.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ApplyPatches(tt.text, tt.patch); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyPatches_LengthArithmetic(t *testing.T) {
	t.Parallel()
	text := "<behavior>retry twice</behavior><behavior>retry twice</behavior>"
	item := PatchItem{Find: "retry twice", Replace: "retry three times with backoff"}
	got := ApplyPatches(text, Patch{Patches: []PatchItem{item}})
	want := len(text) - len(item.Find) + len(item.Replace)
	if len(got) != want {
		t.Errorf("len = %d, want %d", len(got), want)
	}
}

// =============================================================================
// ParsePatchResponse
// =============================================================================

func TestParsePatchResponse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		ok      bool
		patches int
	}{
		{"fenced json", "Here you go:\n```json\n{\"patches\":[{\"find\":\"a\",\"replace\":\"b\"}]}\n```", true, 1},
		{"fenced without tag", "```\n{\"patches\":[]}\n```", true, 0},
		{"raw json", "  {\"patches\":[{\"find\":\"a\",\"replace\":\"b\"},{\"find\":\"c\",\"replace\":\"d\"}]}  ", true, 2},
		{"prose", "I could not produce patches.", false, 0},
		{"missing patches", `{"changes":[]}`, false, 0},
		{"patches not an array", `{"patches":{"find":"a"}}`, false, 0},
		{"top-level array", `[{"find":"a","replace":"b"}]`, false, 0},
		{"empty", "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, ok := ParsePatchResponse(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				if p != nil {
					t.Errorf("expected nil patch, got %+v", p)
				}
				return
			}
			if len(p.Patches) != tt.patches {
				t.Errorf("got %d patches, want %d", len(p.Patches), tt.patches)
			}
		})
	}
}

// =============================================================================
// ExtractTitle
// =============================================================================

func TestExtractTitle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want string
	}{
		{"name tag", "<specification>\n<name>  Rate limiter </name>\n</specification>", "Rate limiter"},
		{"markdown heading", "# User onboarding\n\nbody", "User onboarding"},
		{"skips preamble", "<?xml version=\"1.0\"?>\n<!-- generated -->\n<specification>\n<overview>Search API</overview>", "Search API"},
		{"skips code fence", "```xml\nFirst real line", "First real line"},
		{"empty", "", UntitledEpic},
		{"only preamble", "<?xml?>\n<specification>\n", UntitledEpic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractTitle(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// SummarizeChange
// =============================================================================

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	if s := SummarizeChange("same\n", "same\n"); !s.Empty() || s.String() != "no changes" {
		t.Errorf("identical texts: %+v", s)
	}

	s := SummarizeChange("one\ntwo\nthree\n", "one\n2\nthree\nfour\n")
	if s.Empty() {
		t.Fatal("expected a non-empty summary")
	}
	if s.LinesAdded != 2 || s.LinesRemoved != 1 {
		t.Errorf("lines +%d/-%d, want +2/-1", s.LinesAdded, s.LinesRemoved)
	}
}
