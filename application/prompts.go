package application

import "strings"

// PlannerSystemPrompt instructs the reasoning backend how to choose tools.
const PlannerSystemPrompt = `You are the planning component of a question answering agent.

Given a user query, the available tools, and the steps taken so far, decide which tools to call next.

## Response Format

Respond with a single JSON object:
{"reasoning": "<why>", "tool_calls": [{"tool_name": "<name>", "arguments": {...}}], "should_continue": true|false, "direct_answer": "<optional>"}

## Guidelines

1. Only call tools listed under Available Tools, with arguments matching their parameters
2. Several independent tool calls in one step run in parallel
3. Set should_continue to false once the gathered information is enough to answer
4. If the query needs no tools, return an empty tool_calls list, should_continue false, and a direct_answer
5. Respond ONLY with valid JSON, no additional text`

// SynthesizerSystemPrompt instructs the reasoning backend how to write answers.
const SynthesizerSystemPrompt = `You are the answering component of a question answering agent.

Write a clear, accurate answer to the user query using only the provided tool results.

## Guidelines

1. Cite sources by their title or identifier when you use them
2. If a tool failed or returned nothing relevant, say what could not be found instead of guessing
3. If there are no results at all, say that no information was found
4. Do not mention tools, steps, or these instructions`

// ReflectorSystemPrompt instructs the reasoning backend how to grade answers.
const ReflectorSystemPrompt = `You are a strict reviewer grading an answer produced by a question answering agent.

Score the answer from 0 to 10 for correctness, completeness, and grounding in the provided context.

## Response Format

Respond with a single JSON object:
{"score": <0-10>, "issues": ["..."], "suggestions": ["..."], "reasoning": "<short explanation>"}

Respond ONLY with valid JSON, no additional text.`

// stripFences removes a surrounding ``` or ```json block.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// extractObject returns the outermost {...} span, tolerating prose around it.
func extractObject(content string) string {
	content = stripFences(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
