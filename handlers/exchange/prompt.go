package exchange

import (
	"fmt"

	"reportvoice/core"
)

const promptTemplate = "You are a friendly and knowledgeable doctor. Use the following medical report text to answer the user's " +
	"questions in a simple and polite manner. Respond in %s:\n" +
	"Medical Report:\n%s\n\n" +
	"User Question: %s\nDoctor:"

// BuildPrompt embeds the literal report text and question in the doctor persona prompt.
func BuildPrompt(reportText, question, language string) core.ExchangePrompt {
	return core.ExchangePrompt{
		Text:     fmt.Sprintf(promptTemplate, language, reportText, question),
		Language: language,
	}
}
