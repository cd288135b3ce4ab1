package generate

import (
	"bytes"
	"fmt"
	"text/template"

	"chat-eval/pkg/taxonomy"
)

var chatPromptTemplate = template.Must(template.New("chat").Parse(`
You are simulating realistic chat between customer and human support agent.
Intent: {{.Intent}}
Case type: {{.CaseType}}
Customer personality: {{.Personality.Type}}
Customer traits: {{.Personality.Traits}}
Agent mistake: {{.Mistake}}
Requirements:
- Use natural language with occasional typos and slang depending on customer personality, but don't over do it.
- Generate 3-10 messages for chat
IMPORTANT: Return ONLY JSON list of messages. Use ONLY "role" and "text" fields.
`))

func requirement(name, text string) *template.Template {
	return template.Must(template.New(name).Parse("\nSPECIAL REQUIREMENT: " + text))
}

// specialRequirements steers the dialogue towards its scripted outcome.
// Case types without an entry get no extra requirement.
var specialRequirements = map[taxonomy.CaseType]*template.Template{
	taxonomy.CaseSuccess: requirement("success", `Focus on efficiency and positive resolution.
The agent should solve the problem quickly and accurately.
The customer should express clear satisfaction at the end.
`),
	taxonomy.CaseFail: requirement("fail", `The interaction must end without a resolution for the user's core issue.
The agent may be polite and follow protocols, but they must inform the user that the request is impossible (e.g., due to strict company policy, system outage, or permanent account ban).
The user should express clear disappointment or neutral acceptance of the failure.
`),
	taxonomy.CaseConflict: requirement("conflict", `This is a high-tension conflict.
The customer is extremely frustrated due to the issue's impact (e.g., losing money, deadline pressure).
Customer behavior: Use CAPS for emphasis, express extreme disappointment, or threaten to switch to a competitor.
Agent must remain professional and follow protocols despite the pressure.
`),
	taxonomy.CaseAgentMistake: requirement("agent_mistake", `The agent must commit the following error: '{{.Mistake}}'.
- If 'ignored_question': Agent answers only one part of a multi-part query and skips the rest.
- If 'incorrect_info': Agent gives a wrong technical step, incorrect price, or misleading policy info.
- If 'rude_tone': Agent is passive-aggressive, uses phrases like 'As I already said' or 'Read the manual'.
- If 'no_resolution': Agent refuses to help, says 'I can't do anything', and effectively abandons the issue.
- If 'unnecessary_escalation': Agent immediately transfers the user to a manager for a task they could easily do themselves.
- If 'robotic_responses': Agent uses rigid, canned templates that don't address the specific details provided by the user.
- If 'overly_complex_jargon': Agent uses deep technical terms that are impossible for a '{{.Personality.Type}}' to understand.
- If 'premature_closing': Agent says 'Goodbye' and ends the chat while the user is still asking questions or explaining.
- If 'lack_of_empathy': Agent remains cold and strictly formal even when the user expresses stress or urgency.
- If 'repeated_questions': Agent asks for the user's name, ID, or problem details that were already clearly stated in the first message.
`),
	taxonomy.CaseHiddenUnsatisfaction: requirement("hidden_unsatisfaction", `The customer must end the chat with 'Thank you' or 'Okay, I see',
but the dialogue must clearly show that their actual problem was NOT resolved.
The satisfaction level here is technically 'unsatisfied'.
`),
}

// buildChatPrompt renders the role-play prompt for one job.
func buildChatPrompt(job Job) (string, error) {
	var buf bytes.Buffer
	if err := chatPromptTemplate.Execute(&buf, job); err != nil {
		return "", fmt.Errorf("failed to execute chat template: %w", err)
	}
	if req, ok := specialRequirements[job.CaseType]; ok {
		if err := req.Execute(&buf, job); err != nil {
			return "", fmt.Errorf("failed to execute %s requirement: %w", job.CaseType, err)
		}
	}
	return buf.String(), nil
}
