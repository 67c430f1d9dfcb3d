package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

const analyzeSystemPrompt = `You are an assistant that analyzes meeting transcripts.
Respond with a single JSON object and nothing else, using this shape:
{"summary": "<2-4 paragraph summary of the meeting>", "action_items": ["<action item>", ...]}
If there are no action items, use an empty array.`

const askSystemPrompt = `You answer questions about a meeting using only the transcript provided.
If the transcript does not contain the answer, say so.`

func analyzeUserPrompt(transcript string) string {
	return fmt.Sprintf("Analyze the following meeting transcript:\n\n%s", transcript)
}

func askUserPrompt(transcript, question string) string {
	return fmt.Sprintf("Transcript:\n\n%s\n\nQuestion: %s", transcript, question)
}

type analysisPayload struct {
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
}

// parseAnalysis extracts summary and action items from a model response.
// Models wrap JSON in code fences often enough that we strip them first; if
// the payload still is not valid JSON the whole response becomes the summary
// rather than failing the job.
func parseAnalysis(raw string) (string, []string) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil || payload.Summary == "" {
		return strings.TrimSpace(raw), nil
	}
	return payload.Summary, payload.ActionItems
}
