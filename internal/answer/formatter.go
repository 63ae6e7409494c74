package answer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sotto-ai/sotto/internal/pipeline"
)

// Template selects the answer shape for a question.
type Template string

const (
	// TemplateStructured is the five-step technical shape: restate,
	// approach, algorithm, code, complexity.
	TemplateStructured Template = "STRUCTURED"

	// TemplateSTAR is the Situation/Task/Action/Result behavioral shape.
	TemplateSTAR Template = "STAR"
)

// Behavioral prompts are phrased as experience probes rather than tasks.
var behavioralPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tell me about a time`),
	regexp.MustCompile(`describe a situation`),
	regexp.MustCompile(`how (did|would) you handle`),
	regexp.MustCompile(`give (me )?an example`),
	regexp.MustCompile(`what (is|was) your (biggest|greatest)`),
	regexp.MustCompile(`why (do you|did you|should we)`),
}

// Plan is the structured request handed to the answer-generation
// collaborator after an ALLOW. It is immutable once built.
type Plan struct {
	// ID uniquely identifies the request for log and storage correlation.
	ID string `json:"id"`

	// Question is the finalized remote utterance that was allowed.
	Question string `json:"question"`

	// Speaker and Confidence carry the event's attribution metadata.
	Speaker    string  `json:"speaker"`
	Confidence float64 `json:"confidence"`

	// Template is the selected answer shape.
	Template Template `json:"template"`

	// Language is the implementation language for coding answers.
	Language string `json:"language"`

	// SystemPrompt and UserPrompt are the rendered collaborator inputs.
	SystemPrompt string `json:"-"`
	UserPrompt   string `json:"-"`

	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
}

// Formatter renders answer plans from allowed transcript events.
type Formatter struct {
	profile PreferenceProfile
}

// NewFormatter creates a formatter for the given preference profile.
func NewFormatter(profile PreferenceProfile) *Formatter {
	return &Formatter{profile: profile}
}

// Format builds the plan for one allowed event. recent is the
// conversation leading up to the question, oldest first; it is rendered
// into the prompt so the answer can refer back to what was discussed.
func (f *Formatter) Format(ev pipeline.TranscriptEvent, recent []pipeline.TranscriptEvent) Plan {
	question := strings.TrimSpace(ev.Text)
	tmpl := templateFor(question)

	plan := Plan{
		ID:         uuid.NewString(),
		Question:   question,
		Speaker:    ev.Speaker.String(),
		Confidence: ev.Confidence,
		Template:   tmpl,
		Language:   f.profile.LanguageFor(question),
		CreatedAt:  time.Now(),
	}
	plan.SystemPrompt = f.systemPrompt(plan)
	plan.UserPrompt = userPrompt(plan, recent)
	return plan
}

// templateFor picks STAR for behavioral phrasing and the structured shape
// for everything else.
func templateFor(question string) Template {
	q := strings.ToLower(question)
	for _, p := range behavioralPatterns {
		if p.MatchString(q) {
			return TemplateSTAR
		}
	}
	return TemplateStructured
}

func (f *Formatter) systemPrompt(p Plan) string {
	var b strings.Builder
	b.WriteString("You are answering live interview questions as the candidate. ")
	b.WriteString("Answer in first person, specific and confident, concise but thorough.\n\n")

	if len(f.profile.Skills) > 0 {
		fmt.Fprintf(&b, "CANDIDATE'S TECH STACK: %s\n\n", strings.Join(f.profile.Skills, ", "))
	}
	if f.profile.Resume != "" {
		fmt.Fprintf(&b, "CANDIDATE'S BACKGROUND:\n%s\n\n", f.profile.Resume)
	}

	switch p.Template {
	case TemplateSTAR:
		b.WriteString("ANSWER SHAPE (behavioral):\n")
		b.WriteString("Situation: set the scene briefly\n")
		b.WriteString("Task: what you were responsible for\n")
		b.WriteString("Action: the concrete steps you took\n")
		b.WriteString("Result: the measurable outcome\n")
	default:
		b.WriteString("ANSWER SHAPE (technical):\n")
		b.WriteString("Step 1: Restate the problem and clarify inputs/outputs\n")
		b.WriteString("Step 2: Choose the approach and justify it\n")
		b.WriteString("Step 3: Explain the algorithm and its key insight\n")
		fmt.Fprintf(&b, "Step 4: Provide clean %s code with brief comments\n", p.Language)
		b.WriteString("Step 5: State time and space complexity, then summarize\n")
	}
	return b.String()
}

func userPrompt(p Plan, recent []pipeline.TranscriptEvent) string {
	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString("RECENT DISCUSSION:\n")
		for _, ev := range recent {
			fmt.Fprintf(&b, "[%s] %s\n", ev.Speaker, ev.Text)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "INTERVIEWER'S QUESTION:\n%s\n\nYour answer:", p.Question)
	return b.String()
}
