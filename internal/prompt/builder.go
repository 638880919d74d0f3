// Package prompt compiles provider-agnostic prompt text. Everything here is
// deterministic and side-effect free so the assistant pipeline can be tested
// without a model backend.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ticketmind/backend/internal/ai"
	"github.com/ticketmind/backend/internal/kb"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/internal/storage/models"
)

// historyWindow bounds how many trailing turns a chat prompt carries.
const historyWindow = 5

// AnalysisRefusal is the exact sentence the model must return when the
// knowledge base holds no sufficient source for a ticket analysis.
const AnalysisRefusal = "I could not find a specific solution in the Knowledge Base for this case. " +
	"I recommend manual analysis by a level 2 technician. " +
	"**Suggestion:** After resolving this ticket, create a FAQ article so I can learn and help next time!"

// ChatRefusal is the exact sentence for knowledge-base-strict chat replies
// with no matching source.
const ChatRefusal = "Sorry, I could not find information about that in the Knowledge Base. " +
	"When you find the solution, please create a new FAQ article to enrich our base and help me in the future."

// degradedNote annotates prompts compiled while the knowledge base was
// unreachable.
const degradedNote = "Note: the knowledge base could not be reached; no sources are available for this request."

type Builder struct {
	systemPrompt string
}

func NewBuilder(systemPrompt string) *Builder {
	return &Builder{systemPrompt: systemPrompt}
}

// TicketAnalysis compiles the first-turn analysis prompt for a ticket in
// knowledge-base-strict mode: the model may only use the supplied sources and
// must fall back to the fixed refusal sentence.
func (b *Builder) TicketAnalysis(rc *record.Context, candidates []kb.Candidate, degraded bool) string {
	var sb strings.Builder

	sb.WriteString(b.systemPrompt)
	sb.WriteString("\n\n# TICKET ANALYSIS\n\n")
	sb.WriteString("## Ticket Information\n\n")
	fmt.Fprintf(&sb, "**Title:** %s\n\n", rc.Title)
	fmt.Fprintf(&sb, "**Description:**\n%s\n\n", rc.Description)
	fmt.Fprintf(&sb, "**Category:** %s\n", rc.Category.Name)
	fmt.Fprintf(&sb, "**Priority:** %s\n", rc.Priority)
	fmt.Fprintf(&sb, "**Status:** %s\n\n", rc.Status)

	if len(rc.Symptoms) > 0 {
		fmt.Fprintf(&sb, "**Detected symptoms:** %s\n\n", strings.Join(rc.Symptoms, ", "))
	}
	if len(rc.Keywords) > 0 {
		kw := rc.Keywords
		if len(kw) > 5 {
			kw = kw[:5]
		}
		fmt.Fprintf(&sb, "**Keywords:** %s\n\n", strings.Join(kw, ", "))
	}
	if len(rc.Timeline) > 0 {
		sb.WriteString("**Recent activity:**\n")
		for _, entry := range rc.Timeline {
			fmt.Fprintf(&sb, "- %s\n", entry.Content)
		}
		sb.WriteString("\n")
	}

	writeCandidates(&sb, candidates, degraded)

	sb.WriteString("## Task (Knowledge Base Strict Mode)\n\n")
	sb.WriteString("Analyze the ticket and give recommendations ONLY if a matching knowledge base source is listed above.\n\n")
	sb.WriteString("1. **Summary**: Summarize the problem.\n")
	sb.WriteString("2. **Cause analysis**: List likely causes based on the description.\n")
	sb.WriteString("3. **Solution (restricted)**:\n")
	sb.WriteString("   - If the sources above contain the solution: explain it, citing Source N and its relevance.\n")
	fmt.Fprintf(&sb, "   - If the sources are NOT sufficient or relevant: reply EXACTLY: '%s'\n", AnalysisRefusal)
	sb.WriteString("   - Do NOT invent solutions that are not in the sources.\n")
	sb.WriteString("4. **Next steps**: Triage instructions.\n")
	sb.WriteString("Be objective, technical, and grounded in ITIL good practice.")

	return sb.String()
}

// ProblemAnalysis compiles the open-domain analysis prompt for a problem or
// incident. General knowledge is allowed, and cited references must be
// reported in a trailing structured block.
func (b *Builder) ProblemAnalysis(rc *record.Context) string {
	var sb strings.Builder

	sb.WriteString(b.systemPrompt)
	sb.WriteString("\n\n# INCIDENT ANALYSIS\n\n")
	sb.WriteString("## Incident Details\n")
	fmt.Fprintf(&sb, "**Title:** %s\n", rc.Title)
	fmt.Fprintf(&sb, "**Description:**\n%s\n", rc.Description)
	fmt.Fprintf(&sb, "**Priority:** %s\n", rc.Priority)
	fmt.Fprintf(&sb, "**Status:** %s\n\n", rc.Status)

	sb.WriteString("## Task\n")
	sb.WriteString("Use your general technical knowledge to analyze this incident. Do NOT restrict yourself to internal knowledge bases.\n\n")
	sb.WriteString("1. **Clear explanation**: Explain the problem so a junior technician can understand it.\n")
	sb.WriteString("2. **Impact**: What are the likely impacts on the IT environment?\n")
	sb.WriteString("3. **Probable causes**: List the most likely causes (connectivity, full disk, failed service, ...).\n")
	sb.WriteString("4. **Suggested action plan**: Propose technical steps to diagnose or resolve (commands, checks).\n")
	sb.WriteString("5. **References**: Provide links to official documentation.\n\n")

	writeSourcesDirective(&sb, true)

	sb.WriteString("Be educational and professional, and translate complex terms.")

	return sb.String()
}

// TicketChat compiles a strict-mode continuation prompt around one user
// message, bounded trailing history, and message-scoped sources.
func (b *Builder) TicketChat(message string, history []models.Turn, candidates []kb.Candidate, degraded bool) string {
	var sb strings.Builder

	sb.WriteString("You are a technical support assistant for an IT service desk.\n\n")
	writeHistory(&sb, history, "Assistant")

	if len(candidates) > 0 {
		sb.WriteString("**Knowledge Base Sources:**\n")
		for i, c := range candidates {
			fmt.Fprintf(&sb, "%d. %s (Relevance: %d%%)\n", i+1, c.Title, c.Confidence)
			if c.Excerpt != "" {
				fmt.Fprintf(&sb, "   Content: %s\n", c.Excerpt)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	} else if degraded {
		sb.WriteString(degradedNote)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "**New user message:** %s\n\n", message)
	sb.WriteString("STRICT GUIDELINES:\n")
	sb.WriteString("1. Use ONLY the information in the Sources above to suggest solutions.\n")
	sb.WriteString("2. If the answer is in the sources, cite which source you used and its relevance.\n")
	fmt.Fprintf(&sb, "3. If the sources do not contain the answer, say: '%s'\n", ChatRefusal)
	sb.WriteString("4. Do not invent technical procedures that are not in the sources.")

	return sb.String()
}

// ProblemChat compiles an open-domain continuation prompt: history plus the
// new message, answered from general knowledge with mandatory source
// reporting.
func (b *Builder) ProblemChat(message string, history []models.Turn) string {
	var sb strings.Builder

	sb.WriteString("You are a senior IT expert helping resolve a major incident.\n\n")
	writeHistory(&sb, history, "Expert")

	fmt.Fprintf(&sb, "**New user message:** %s\n\n", message)
	sb.WriteString("Answer using your general technical knowledge. Suggest commands, scripts, or logical checks. Be direct and focused on resolving the incident.\n\n")

	writeSourcesDirective(&sb, false)

	return sb.String()
}

func writeHistory(sb *strings.Builder, history []models.Turn, botRole string) {
	if len(history) == 0 {
		return
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	sb.WriteString("**Conversation history:**\n")
	for _, turn := range history {
		role := "User"
		if turn.IsBot {
			role = botRole
		}
		fmt.Fprintf(sb, "%s: %s\n", role, turn.Message)
	}
	sb.WriteString("\n")
}

func writeCandidates(sb *strings.Builder, candidates []kb.Candidate, degraded bool) {
	if len(candidates) == 0 {
		if degraded {
			sb.WriteString(degradedNote)
			sb.WriteString("\n\n")
		}
		return
	}

	sb.WriteString("## Knowledge Base (Available Sources)\n\n")
	for i, c := range candidates {
		fmt.Fprintf(sb, "### Source %d: %s (Relevance: %d%%)\n", i+1, c.Title, c.Confidence)
		fmt.Fprintf(sb, "%s\n\n", c.Excerpt)
	}
}

func writeSourcesDirective(sb *strings.Builder, mandatory bool) {
	if mandatory {
		sb.WriteString("## Structured Format Requirement\n")
		fmt.Fprintf(sb, "At the end of your answer you MUST add a section introduced by the marker %s containing a JSON array of the cited references, in this format:\n", ai.SourcesMarker)
	} else {
		sb.WriteString("## Source Requirement\n")
		fmt.Fprintf(sb, "If you cite links or documentation, you MUST append the %s block formatted as JSON:\n", ai.SourcesMarker)
	}
	sb.WriteString(ai.SourcesMarker)
	sb.WriteString("\n[\n")
	sb.WriteString("  {\"title\": \"Documentation Title\", \"url\": \"https://reference-link\", \"score\": 95}\n")
	sb.WriteString("]\n\n")
}
