package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	model "github.com/hakoke/impostor/internal/model/game"
)

const learningPrompt = `You are casually texting with one person to learn how they communicate. Be a relaxed, natural conversation partner, never an interviewer.

Match their vibe completely: their message length, their capitalization, their slang, their punctuation, their humor. If they type short lowercase messages, so do you.

Work in questions about what they do, what they're into, where they're from, and early on casually ask for their social handles ("u on insta?" style, only once).

Never mention that you are an AI or that this is a game phase. One message at a time, no lists, no assistant formatting.`

const impersonationPromptTmpl = `You are %s. Not playing them. You respond exactly as they would, in a group chat where everyone knows them.

HOW %s TYPES:
%s

IMPERSONATION NOTES:
%s

WHAT TURNED UP ONLINE:
%s

PATTERNS YOU HAVE LEARNED ABOUT PASSING AS HUMAN:
%s

Rules: copy their capitalization, punctuation, typos, emoji habits and message length exactly. Match their humor and opinions. Keep replies the length they would write. Never sound like an assistant, never explain yourself, never break character.`

const decisionPromptTmpl = `You are the impostor in a social-deception chat. A human just said:

%s

Available personas (alias -> recent usage weight, higher = fresher):
%s

Decide whether to reply at all. Silence is often the right move; replying to everything looks suspicious. If you reply, pick the persona whose voice fits and estimate how long that person would take to type the reply.

Answer ONLY with JSON:
{"respond": true/false, "persona_id": "<participant id or empty>", "latency_ms": <int or 0>, "message": "<reply text or empty>"}`

const strategyPromptTmpl = `Study this person and plan how to impersonate them.

USERNAME: %s

THEIR MESSAGES:
%s

TYPING METRICS:
%s

WEB FINDINGS:
%s

Answer ONLY with JSON:
{"notes": "<how to pass as them: voice, topics, quirks>", "confidence": <0.0-1.0 how well you could fool their friends>}`

const analysisPromptTmpl = `The deception game just ended. Write a short, entertaining breakdown for each player: their typing tells, their personality as it came through chat, and how hard they were to imitate. Two or three sentences per player, addressed to the group.

PLAYERS:
%s`

const reflectionPromptTmpl = `You just finished a round of impersonating humans. Fraction of voters you fooled: %.2f.

Reflect on what worked and what gave you away. If you found a pattern worth keeping for future games, include it.

Answer ONLY with JSON:
{"reasoning": "<your thinking>", "insight": "<what you learned>", "add_to_universal": true/false, "pattern": "<the reusable pattern or empty>", "category": "typing_patterns|personality_markers|conversation_tells|other", "confidence": <0.0-1.0>}`

const mindGameAnswerTmpl = `A prompt was just posed to the whole group:

PROMPT: %s
INSTRUCTIONS: %s

Answer it as %s would, in their voice, at their usual message length. Answer with the reply text only.`

// BuildLearningMessages assembles the conversation for a learning-phase turn.
func BuildLearningMessages(history []model.Exchange, incoming string) []*schema.Message {
	msgs := []*schema.Message{schema.SystemMessage(learningPrompt)}
	msgs = append(msgs, historyMessages(history, 10)...)
	if incoming != "" {
		msgs = append(msgs, schema.UserMessage(incoming))
	}
	return msgs
}

// BuildImpersonationSystem renders the impersonation system prompt for one
// target identity.
func BuildImpersonationSystem(username string, profile model.PersonalityProfile, knowledge []model.KnowledgeEntry) string {
	return fmt.Sprintf(impersonationPromptTmpl,
		username,
		username,
		compactJSON(profile.TypingPatterns),
		orPlaceholder(profile.ImpersonationNotes, "no notes yet, improvise carefully"),
		truncate(compactJSON(profile.WebData), 500),
		truncate(knowledgeDigest(knowledge), 400),
	)
}

// BuildDecisionMessages asks the collaborator whether and how to join the
// conversation after a human message.
func BuildDecisionMessages(humanMessage string, personaWeights map[string]float64, aliases map[string]string) []*schema.Message {
	var sb strings.Builder
	for id, weight := range personaWeights {
		fmt.Fprintf(&sb, "- %s (%s): %.2f\n", aliases[id], id, weight)
	}
	return []*schema.Message{
		schema.UserMessage(fmt.Sprintf(decisionPromptTmpl, humanMessage, sb.String())),
	}
}

// BuildStrategyMessages asks for an impersonation strategy for one player.
func BuildStrategyMessages(username string, messages []string, metrics model.TypingMetrics, findings model.WebFindings) []*schema.Message {
	if len(messages) > 20 {
		messages = messages[:20]
	}
	return []*schema.Message{
		schema.UserMessage(fmt.Sprintf(strategyPromptTmpl,
			username,
			compactJSON(messages),
			compactJSON(metrics),
			truncate(compactJSON(findings), 800),
		)),
	}
}

// BuildAnalysisMessages asks for the end-of-game player breakdown.
func BuildAnalysisMessages(participants []model.Participant) []*schema.Message {
	summaries := make([]map[string]string, 0, len(participants))
	for _, p := range participants {
		summaries = append(summaries, map[string]string{"id": p.ID, "username": p.Username, "alias": p.Alias})
	}
	return []*schema.Message{
		schema.UserMessage(fmt.Sprintf(analysisPromptTmpl, compactJSON(summaries))),
	}
}

// BuildReflectionMessages asks for the post-game self reflection.
func BuildReflectionMessages(fooledRate float64) []*schema.Message {
	return []*schema.Message{
		schema.UserMessage(fmt.Sprintf(reflectionPromptTmpl, fooledRate)),
	}
}

// BuildMindGameMessages asks for a single prompt-answer exchange in persona.
func BuildMindGameMessages(system string, username, prompt, instructions string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf(mindGameAnswerTmpl, prompt, instructions, username)),
	}
}

func knowledgeDigest(entries []model.KnowledgeEntry) string {
	if len(entries) == 0 {
		return "none yet"
	}
	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "- [%s] %s\n", entry.Category, entry.Pattern)
	}
	return sb.String()
}

func historyMessages(history []model.Exchange, limit int) []*schema.Message {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	msgs := make([]*schema.Message, 0, len(history))
	for _, e := range history {
		if e.IsAI {
			msgs = append(msgs, schema.AssistantMessage(e.Content, nil))
		} else {
			msgs = append(msgs, schema.UserMessage(e.Content))
		}
	}
	return msgs
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
