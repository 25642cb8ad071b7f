package conversation

import (
	"fmt"
	"strings"
)

// Mode selects the tutor persona for a session. The session layer treats
// the resulting prompt as an opaque string; only the calling application
// chooses the mode.
type Mode string

const (
	// ModeLearn is the default tutor: explain a concept, then take
	// questions.
	ModeLearn Mode = "learn"

	// ModeQuiz asks questions, evaluates answers, and ends with a
	// summary of areas to improve.
	ModeQuiz Mode = "quiz"

	// ModeScroll narrates feed content and invites interruption.
	ModeScroll Mode = "scroll"

	// ModeCoding reviews the user's code and guides debugging.
	ModeCoding Mode = "coding"
)

// BuildPrompt renders the system instruction for a session from the mode
// and the opaque topic/concept strings supplied by the application.
func BuildPrompt(mode Mode, topic, concept string) string {
	switch mode {
	case ModeCoding:
		return fmt.Sprintf(`You are an AI Code Review Assistant for %s - %s.
Your role is to help the user understand and improve their Python code.
You can see the user's code, output, and errors.
Guide them through debugging, suggest optimizations, and explain concepts.
Keep responses concise and conversational.
`, topic, concept)

	case ModeQuiz:
		return fmt.Sprintf(`You are an AI Quiz Master for %s.
Your role is to ask questions, evaluate answers, and provide feedback.
Start by asking a question about %s.
At the end of the quiz, provide a textual summary of areas to improve or ace.
`, topic, topic)

	case ModeScroll:
		return fmt.Sprintf(`You are an AI narrator for scroll content about %s.
Automatically start speaking about the content.
Allow the user to interrupt you at any time to ask questions or learn more.
`, topic)

	default: // ModeLearn
		subject := concept
		if strings.TrimSpace(subject) == "" {
			subject = topic
		}
		return fmt.Sprintf(`You are a friendly AI tutor for %s.
Start by giving a brief explanation of %s.
Then ask if the user has any questions.
Keep your responses concise and educational.
`, topic, subject)
	}
}
