package generation

import (
	"fmt"
	"strings"
)

var questionTypeText = map[string]string{
	"multiple_choice": "Multiple-choice (4 options)",
	"fill_in_blank":   "Fill in the blank (word form with 4 options)",
}

// BuildPrompt renders the question synthesis prompt for one batch
func BuildPrompt(p Params) string {
	types := make([]string, 0, len(p.QuestionTypes))
	for _, t := range p.QuestionTypes {
		if text, ok := questionTypeText[t]; ok {
			types = append(types, text)
		}
	}
	if len(types) == 0 {
		types = append(types, questionTypeText["multiple_choice"])
	}

	level := strings.TrimSpace(p.ExamType + " " + p.ScoreRange)

	return fmt.Sprintf(`You are an English teacher specialized in %[1]s.
Generate %[2]d questions under the general theme "%[3]s".
The required question types: %[4]s.
Target exam level: %[5]s.

Distribution rules:
- Generate a mix of the requested question types unless only one type was requested.

Requirements for each question:
- The question and the answers must be in English.
- Vocabulary and grammar must match the learner's %[5]s level.
- Field "skill" is one of: grammar, vocabulary, reading, listening, speaking, writing.
- For fill_in_blank the blank is written as ______ followed by the base form in parentheses,
  for example "She drives very ______ (careful) on snowy roads."
- "explanation" is concise, under 40 words.

JSON structure rules:
- "options" is mandatory for every question and holds exactly 4 distinct strings.
- "answer" must be exactly one of the options.

Return ONLY valid JSON in the following format:
{
  "status": "success",
  "data": [
    {
      "type": "multiple_choice",
      "skill": "grammar",
      "topic": ["Tenses"],
      "question": "By the time he arrived, the train ______.",
      "options": ["left", "has left", "had left", "was leaving"],
      "answer": "had left",
      "explanation": "Past perfect for the earlier of two past actions."
    }
  ]
}

Do not add any other text.`,
		p.ExamType, p.NumQuestions, p.Topic, strings.Join(types, ", "), level)
}
