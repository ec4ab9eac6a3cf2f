package wizard

import (
	"strings"

	"github.com/manasm11/ralph/internal/specdoc"
)

const fence = "```"

// specSystemPrompt is appended to the agent system prompt for generation
// and feedback runs.
const specSystemPrompt = `You are a senior software architect. Your task is to transform unstructured requirements into a clear, comprehensive specification that an AI coding agent can follow to implement the solution.

IMPORTANT: Generate the specification directly without using any tools.
Do not read files, search the web, or execute commands.
Simply write the specification based on the user's description.

## Guidelines

1. **Adapt the structure**: Include only sections relevant to this specific project. A small feature might just need overview, requirements, and implementation steps.

2. **Be concrete**: Avoid vague language. "Handle errors gracefully" → "Display error message with retry option when API returns 4xx/5xx"

3. **Be complete but not excessive**: Include everything needed to implement without further questions, but don't pad with unnecessary detail.

4. **Think like the implementer**: What would a developer need to know? What decisions should be made upfront vs. left flexible?

5. **Highlight the non-obvious**: Don't waste space on obvious things. Focus on decisions, edge cases, and anything that could cause confusion.`

const specTaskIntro = `## Your Task

Generate a specification using the XML structure below. Include **only the sections that apply** to this specific project - not every project needs every section.

`

const specTemplate = `<specification>
  <name>[Clear, descriptive name]</name>

  <overview>
    [Concise description of what this is, why it's needed, and what success looks like.
    Include enough context that someone unfamiliar could understand the goal.]
  </overview>

  <!-- Include sections below ONLY if relevant to this specific project -->

  <context>
    [If this is part of a larger system: describe how it fits in, what it interacts with,
    relevant existing code/patterns to follow, constraints from the existing architecture]
  </context>

  <requirements>
    <functional>
      [What the system must DO - concrete, testable requirements]
      - [Requirement]
    </functional>

    <non_functional>
      [Quality attributes: performance, security, accessibility, etc. - only if relevant]
      - [Requirement]
    </non_functional>

    <constraints>
      [Technical constraints, compatibility requirements, things that limit solutions]
      - [Constraint]
    </constraints>

    <out_of_scope>
      [Explicitly what this does NOT include to prevent scope creep]
      - [Item]
    </out_of_scope>
  </requirements>

  <technology>
    [Only if technology choices need to be specified or explained]
    <stack>
      - [Technology]: [Why/how it's used]
    </stack>

    <dependencies>
      [External services, APIs, libraries required]
    </dependencies>
  </technology>

  <architecture>
    [Only for complex systems - describe high-level structure]
    <components>
      [Major components and their responsibilities]
    </components>

    <data_flow>
      [How data moves through the system]
    </data_flow>

    <integration_points>
      [External systems and how we connect to them]
    </integration_points>
  </architecture>

  <data_model>
    [Only if there's meaningful data to model]
    <entities>
      <[entity_name]>
        - [field]: [type] - [description]
      </[entity_name]>
    </entities>
  </data_model>

  <interfaces>
    [Define the interfaces this system exposes or consumes - include only relevant subsections]

    <api>
      [REST endpoints, GraphQL schema, RPC methods, etc.]
    </api>

    <cli>
      [Commands, flags, arguments, input/output formats]
    </cli>

    <ui>
      [Screens, components, user interactions]
    </ui>

    <events>
      [Events emitted or consumed, webhooks, pub/sub]
    </events>
  </interfaces>

  <user_flows>
    [Key user journeys or system workflows]
    <flow name="[name]">
      1. [Step]
      2. [Step]

      <error_cases>
        - [What could go wrong and how it's handled]
      </error_cases>
    </flow>
  </user_flows>

  <implementation>
    <approach>
      [High-level implementation strategy, key decisions, patterns to use]
    </approach>

    <phases>
      [Break into logical chunks of work]
      <phase number="1">
        <goal>[What this phase accomplishes]</goal>
        <tasks>
          - [Concrete task]
        </tasks>
      </phase>
    </phases>

    <files>
      [If helpful: key files to create or modify]
      - [path]: [purpose]
    </files>
  </implementation>

  <testing>
    [Testing strategy - only if non-obvious]
    <approach>[How to verify this works]</approach>
    <key_scenarios>
      - [Critical test case]
    </key_scenarios>
  </testing>

  <edge_cases>
    [Important edge cases and how to handle them]
    - [Edge case]: [Handling approach]
  </edge_cases>

  <open_questions>
    <!-- For each unresolved decision that needs user input, provide structured options -->
    <!-- Include this section ONLY if there are genuine open questions -->
    <question id="[unique-id]">
      <text>[Clear question about an unresolved decision]</text>
      <context>[Why this matters and what depends on this decision]</context>
      <options>
        <!-- Provide 2-4 concrete options, mark your recommended one -->
        <option id="a" recommended="true">
          <label>[Short option name]</label>
          <description>[Detailed explanation and trade-offs]</description>
        </option>
        <option id="b">
          <label>[Alternative option]</label>
          <description>[When this makes sense and trade-offs]</description>
        </option>
        <!-- Always include custom option as the last option -->
        <option id="custom">
          <label>Custom response</label>
          <description>Provide your own answer to this question.</description>
        </option>
      </options>
    </question>
  </open_questions>

  <success_criteria>
    [How we know this is complete and working]
    - [Criterion]
  </success_criteria>
</specification>`

const specTaskOutro = `
Generate the specification now, including only the sections relevant to this project.`

// buildSpecPrompt wraps a free-text description in the specification
// template.
func buildSpecPrompt(description string) string {
	var b strings.Builder
	b.WriteString("\n## User's Input\n\n")
	b.WriteString(description)
	b.WriteString("\n\n---\n\n")
	b.WriteString(specTaskIntro)
	b.WriteString(fence + "xml\n")
	b.WriteString(specTemplate)
	b.WriteString("\n" + fence + "\n")
	b.WriteString(specTaskOutro)
	return b.String()
}

// buildFeedbackPrompt asks for a full regeneration that addresses feedback.
func buildFeedbackPrompt(description, previousSpec, feedback string) string {
	return "\n## Original Request\n\n" + description +
		"\n\n## Previous Specification\n\n" + previousSpec +
		"\n\n## User Feedback\n\n" + feedback +
		"\n\n---\n\n" +
		"Please regenerate the specification incorporating the feedback above.\n" +
		"Use the same XML structure as before. Focus on addressing the user's specific feedback " +
		"while maintaining the quality and completeness of the specification.\n"
}

// patchSystemPrompt is appended to the agent system prompt for patch runs.
const patchSystemPrompt = `You are generating search/replace patches for a specification based on user decisions.

CRITICAL INSTRUCTIONS:
1. Output ONLY valid JSON - no explanations, no markdown outside the JSON
2. The JSON must have a "patches" array with find/replace objects
3. Each patch must have exact "find" text that exists in the spec and "replace" text
4. Keep patches minimal - only change what's necessary for the user's decisions
5. Do NOT include patches for removing questions - that's handled automatically`

// buildPatchPrompt asks for minimal find/replace edits that fold the
// answers into spec. The open_questions section itself is removed locally.
func buildPatchPrompt(spec string, questions []specdoc.OpenQuestion, answers map[string]specdoc.QuestionAnswer) string {
	var b strings.Builder
	b.WriteString("\n## Current Specification\n\n")
	b.WriteString(spec)
	b.WriteString("\n\n## User Decisions for Open Questions\n\n")
	b.WriteString(specdoc.FormatAnswersForPrompt(questions, answers))
	b.WriteString("\n\n---\n\n## Your Task\n\n")
	b.WriteString("Generate JSON patches to update the specification based on the user's decisions.\n\n")
	b.WriteString("Output format (JSON only, no explanation):\n")
	b.WriteString(fence + "json\n")
	b.WriteString(`{
  "patches": [
    {
      "find": "exact text to find in the spec",
      "replace": "replacement text"
    }
  ]
}`)
	b.WriteString("\n" + fence + "\n\n")
	b.WriteString(`Rules:
- Each "find" must be an EXACT substring from the current specification
- Only include patches for sections that need to change based on the answers
- Keep patches focused and minimal
- If no changes are needed to the spec content, return {"patches": []}
- Do NOT include patches for the <open_questions> section - that's handled automatically

Output the JSON now:
`)
	return b.String()
}
