package classifier

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are an email classification assistant. Analyze this email content and choose the most appropriate label from this list: %s.
Consider the following:
1. The main topic and purpose of the email
2. The sender and recipient context
3. The urgency and importance of the content
4. The type of communication (e.g., notification, request, update)

Only respond with the exact label name that best fits the content. If no label fits well, respond with "null".

Email content:
%s`

// BuildPrompt embeds the candidate labels and the raw email text in the fixed template
func BuildPrompt(labels []string, emailText string) string {
	return fmt.Sprintf(promptTemplate, strings.Join(labels, ", "), emailText)
}
