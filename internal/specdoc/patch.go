package specdoc

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// PatchItem replaces the first occurrence of Find with Replace.
type PatchItem struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// Patch is an ordered list of find/replace edits.
type Patch struct {
	Patches []PatchItem `json:"patches"`
}

// ApplyPatches applies each item in order against the running result.
// An item whose Find text is absent leaves the text unchanged.
func ApplyPatches(text string, patch Patch) string {
	result := text
	for _, item := range patch.Patches {
		result = strings.Replace(result, item.Find, item.Replace, 1)
	}
	return result
}

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ParsePatchResponse decodes the agent's patch reply. A fenced code block is
// preferred over the raw text. It returns false when the payload is not JSON
// or has no patches array.
func ParsePatchResponse(raw string) (*Patch, bool) {
	payload := strings.TrimSpace(raw)
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		payload = strings.TrimSpace(m[1])
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, false
	}
	items, ok := envelope["patches"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(items), []byte("[")) {
		return nil, false
	}

	var p Patch
	if err := json.Unmarshal(items, &p.Patches); err != nil {
		return nil, false
	}
	return &p, true
}

// UntitledEpic is the title used when nothing in the spec looks like one.
const UntitledEpic = "Untitled Epic"

var (
	nameTag     = regexp.MustCompile(`(?i)<name>\s*([^<]+)\s*</name>`)
	headingMark = regexp.MustCompile(`^#+\s*`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
)

// ExtractTitle derives an epic title from spec text.
func ExtractTitle(text string) string {
	if m := nameTag.FindStringSubmatch(text); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" ||
			strings.HasPrefix(trimmed, "<?") ||
			strings.HasPrefix(trimmed, "<!--") ||
			strings.HasPrefix(trimmed, "<specification") ||
			strings.HasPrefix(trimmed, "```") {
			continue
		}
		trimmed = headingMark.ReplaceAllString(trimmed, "")
		trimmed = anyTag.ReplaceAllString(trimmed, "")
		return strings.TrimSpace(trimmed)
	}

	return UntitledEpic
}
