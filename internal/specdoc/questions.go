package specdoc

import (
	"regexp"
	"strings"
)

// CustomOptionID is the option id that switches a question to free-text input.
const CustomOptionID = "custom"

// QuestionOption is one selectable answer to an open question.
type QuestionOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Recommended bool   `json:"recommended"`
}

// OpenQuestion is a clarifying question embedded in a generated spec.
type OpenQuestion struct {
	ID      string           `json:"id"`
	Text    string           `json:"text"`
	Context string           `json:"context"`
	Options []QuestionOption `json:"options"`
}

// QuestionAnswer is the user's answer to one open question.
// CustomResponse is only meaningful when SelectedOptionID is CustomOptionID.
type QuestionAnswer struct {
	QuestionID       string `json:"questionId"`
	SelectedOptionID string `json:"selectedOptionId"`
	CustomResponse   string `json:"customResponse,omitempty"`
}

// Option returns the option with the given id.
func (q OpenQuestion) Option(id string) (QuestionOption, bool) {
	for _, o := range q.Options {
		if o.ID == id {
			return o, true
		}
	}
	return QuestionOption{}, false
}

var (
	openQuestionsTag = tagPattern("open_questions")
	optionsTag       = tagPattern("options")
	textTag          = tagPattern("text")
	contextTag       = tagPattern("context")
	labelTag         = tagPattern("label")
	descriptionTag   = tagPattern("description")

	idAttr          = attrPattern("id")
	recommendedAttr = attrPattern("recommended")

	questionBlock = regexp.MustCompile(`(?i)<question[\s\S]*?</question>`)
	optionBlock   = regexp.MustCompile(`(?i)<option[\s\S]*?</option>`)

	hasQuestionsPattern = regexp.MustCompile(`(?i)<open_questions>[\s\S]*?<question[\s\S]*?</open_questions>`)
	openQuestionsBlock  = regexp.MustCompile(`(?i)\s*<open_questions>[\s\S]*?</open_questions>`)
)

func tagPattern(tag string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<` + tag + `[^>]*>([\s\S]*?)</` + tag + `>`)
}

func attrPattern(attr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + attr + `\s*=\s*["']([^"']*)["']`)
}

// extractTagContent returns the trimmed body of the first matching tag.
func extractTagContent(text string, re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func extractAttribute(text string, re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HasOpenQuestions reports whether text carries an open_questions section
// with at least one question in it.
func HasOpenQuestions(text string) bool {
	return hasQuestionsPattern.MatchString(text)
}

// ParseOpenQuestions extracts the open questions from a generated spec.
// Malformed questions are dropped; it never fails.
func ParseOpenQuestions(text string) []OpenQuestion {
	section, ok := extractTagContent(text, openQuestionsTag)
	if !ok || section == "" {
		return nil
	}

	var questions []OpenQuestion
	for _, block := range questionBlock.FindAllString(section, -1) {
		if q, ok := parseQuestion(block); ok {
			questions = append(questions, q)
		}
	}
	return questions
}

func parseQuestion(block string) (OpenQuestion, bool) {
	id, _ := extractAttribute(block, idAttr)
	text, _ := extractTagContent(block, textTag)
	context, _ := extractTagContent(block, contextTag)
	optionsSection, _ := extractTagContent(block, optionsTag)
	if id == "" || text == "" || context == "" || optionsSection == "" {
		return OpenQuestion{}, false
	}

	var options []QuestionOption
	for _, ob := range optionBlock.FindAllString(optionsSection, -1) {
		if o, ok := parseOption(ob); ok {
			options = append(options, o)
		}
	}
	// at least one real option plus custom
	if len(options) < 2 {
		return OpenQuestion{}, false
	}

	return OpenQuestion{ID: id, Text: text, Context: context, Options: options}, true
}

func parseOption(block string) (QuestionOption, bool) {
	id, _ := extractAttribute(block, idAttr)
	label, _ := extractTagContent(block, labelTag)
	description, _ := extractTagContent(block, descriptionTag)
	if id == "" || label == "" || description == "" {
		return QuestionOption{}, false
	}
	rec, _ := extractAttribute(block, recommendedAttr)
	return QuestionOption{
		ID:          id,
		Label:       label,
		Description: description,
		Recommended: rec == "true",
	}, true
}

// FormatOpenQuestions renders questions in the markup ParseOpenQuestions reads.
func FormatOpenQuestions(questions []OpenQuestion) string {
	var b strings.Builder
	b.WriteString("<open_questions>\n")
	for _, q := range questions {
		b.WriteString(`  <question id="` + q.ID + `">` + "\n")
		b.WriteString("    <text>" + q.Text + "</text>\n")
		b.WriteString("    <context>" + q.Context + "</context>\n")
		b.WriteString("    <options>\n")
		for _, o := range q.Options {
			b.WriteString(`      <option id="` + o.ID + `"`)
			if o.Recommended {
				b.WriteString(` recommended="true"`)
			}
			b.WriteString(">\n")
			b.WriteString("        <label>" + o.Label + "</label>\n")
			b.WriteString("        <description>" + o.Description + "</description>\n")
			b.WriteString("      </option>\n")
		}
		b.WriteString("    </options>\n")
		b.WriteString("  </question>\n")
	}
	b.WriteString("</open_questions>")
	return b.String()
}

// FormatAnswersForPrompt renders the answered questions, in question order,
// as the markdown block the patch prompt embeds.
func FormatAnswersForPrompt(questions []OpenQuestion, answers map[string]QuestionAnswer) string {
	var lines []string
	for _, q := range questions {
		a, ok := answers[q.ID]
		if !ok {
			continue
		}

		lines = append(lines, "## "+q.Text)
		if a.SelectedOptionID == CustomOptionID && a.CustomResponse != "" {
			lines = append(lines, "**User's answer:** "+a.CustomResponse)
		} else if opt, found := q.Option(a.SelectedOptionID); found {
			lines = append(lines, "**Selected:** "+opt.Label)
			lines = append(lines, "**Description:** "+opt.Description)
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// RemoveAnsweredQuestions deletes the question blocks with the given ids.
// When no question is left the whole open_questions section goes too.
func RemoveAnsweredQuestions(text string, ids []string) string {
	result := text
	for _, id := range ids {
		re := regexp.MustCompile(`\s*<(?i:question)\s+(?i:id)=["']` + regexp.QuoteMeta(id) + `["'][^>]*>[\s\S]*?</(?i:question)>`)
		result = re.ReplaceAllString(result, "")
	}

	section, ok := extractTagContent(result, openQuestionsTag)
	if ok && !questionBlock.MatchString(section) {
		result = openQuestionsBlock.ReplaceAllString(result, "")
	}
	return result
}
