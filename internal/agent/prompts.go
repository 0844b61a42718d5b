package agent

import (
	"strings"
	"text/template"

	"github.com/harrison/fixloop/internal/budget"
)

// Prompts renders the four requests the attempt loop sends to the backend.
type Prompts struct {
	Language      string // e.g. "C#"
	TestFramework string // e.g. "NUnit"
}

// NewPrompts creates prompt builders for a language and test framework.
func NewPrompts(language, testFramework string) *Prompts {
	return &Prompts{Language: language, TestFramework: testFramework}
}

type promptData struct {
	Language      string
	TestFramework string
	Task          string
	Code          string
	Errors        string
}

var promptTemplates = template.Must(template.New("prompts").Parse(`
{{define "code"}}You are an expert {{.Language}} software engineer writing production-quality code.

Solve the following problem:
{{.Task}}

Requirements:
- The code must be valid {{.Language}} and compile without modification
- Put the core logic in a public type named 'Solution' with an entry method named 'Solve'
- Keep any user interaction in a separate type
- Use only the standard library of the language
- Include every import or using directive the file needs

Output only the source file. No explanations, markdown, pseudocode, or placeholders.
{{end}}

{{define "tests"}}You are an expert {{.Language}} developer and test engineer.
Write {{.TestFramework}} unit tests for the following code:
{{.Code}}

Requirements:
- At least 20 distinct test cases covering normal input, boundaries and edge cases
- Concurrency tests if the code shares state between threads
- Do not test user-interface types
- Use only the standard library and {{.TestFramework}}

Output one complete, compilable {{.Language}} test file and nothing else.
{{end}}

{{define "fix"}}The following {{.Language}} code failed to build or pass its tests.

Original task:
{{.Task}}

Code:
{{.Code}}

Error output:
{{.Errors}}

Fix the code so that it compiles and all tests pass.
- Keep the public type 'Solution' and its method 'Solve' so the tests can find them
- Use only the standard library of the language
- Include every import or using directive the file needs

Output only the corrected source file. No explanations outside code comments.
{{end}}

{{define "doc"}}You are a senior software architect. Write a design document in Markdown for the {{.Language}} code below.

Source code:
{{.Code}}

Sections:
1. Purpose and problem statement
2. Core logic overview, including key algorithms
3. Public types and methods with parameters and return values
4. A Mermaid sequence diagram in a fenced code block
5. A Mermaid flowchart of the control flow

Output the Markdown document only.
{{end}}
`))

func (p *Prompts) render(name string, data promptData) (string, error) {
	data.Language = p.Language
	data.TestFramework = p.TestFramework

	var sb strings.Builder
	if err := promptTemplates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

// Code asks for an initial implementation of task.
func (p *Prompts) Code(task string) (string, error) {
	return p.render("code", promptData{Task: task})
}

// Tests asks for a test suite exercising code.
func (p *Prompts) Tests(code string) (string, error) {
	return p.render("tests", promptData{Code: code})
}

// Fix asks for a corrected version of fb.Code given fb.Errors.
// fb should already be trimmed to the prompt budget.
func (p *Prompts) Fix(fb budget.Feedback) (string, error) {
	return p.render("fix", promptData{Task: fb.Task, Code: fb.Code, Errors: fb.Errors})
}

// DesignDoc asks for a Markdown design document describing code.
func (p *Prompts) DesignDoc(code string) (string, error) {
	return p.render("doc", promptData{Code: code})
}

// ExtractCode returns the body of the first fenced code block in text, or
// the whole text trimmed when there is no fence.
func ExtractCode(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return strings.TrimSpace(text)
	}

	rest := text[start+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return strings.TrimSpace(text)
	}
	body := rest[nl+1:]

	end := strings.Index(body, "```")
	if end < 0 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}
