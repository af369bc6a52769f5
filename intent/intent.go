// Package intent classifies user queries so the orchestrator knows which
// tools to invoke and whether to ask for clarification instead of answering.
// Detection is keyword-first; the language model is consulted only for
// low-confidence or vague queries.
package intent

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/llm"
)

// Category labels what the user is asking for.
type Category string

const (
	DocumentSummary  Category = "document_summary"
	DocumentSearch   Category = "document_search"
	DocumentSpecific Category = "document_specific"
	DocumentList     Category = "document_list"
	MemoryRecall     Category = "memory_recall"
	GeneralChat      Category = "general_chat"
	VagueQuery       Category = "vague_query"
)

var validCategories = map[Category]bool{
	DocumentSummary:  true,
	DocumentSearch:   true,
	DocumentSpecific: true,
	DocumentList:     true,
	MemoryRecall:     true,
	GeneralChat:      true,
	VagueQuery:       true,
}

// Detected is the result of intent detection.
type Detected struct {
	Category             Category          `json:"category"`
	Confidence           float64           `json:"confidence"`
	Tools                []string          `json:"tools_to_use"`
	IsVague              bool              `json:"is_vague"`
	ClarificationMessage string            `json:"clarification_message,omitempty"`
	ClarificationOptions []string          `json:"clarification_options,omitempty"`
	Entities             map[string]string `json:"extracted_entities,omitempty"`
}

var keywords = map[Category][]string{
	DocumentSummary: {
		"summarize", "summary", "key points", "main points", "overview",
		"what does it say", "tell me about", "explain the paper",
		"highlights", "tldr", "brief", "recap",
	},
	DocumentSearch: {
		"find", "search", "look for", "where does it say", "locate",
		"which part", "mentions", "refers to", "contains",
	},
	DocumentSpecific: {
		"@", ".pdf", ".docx", ".txt", "the document", "the file",
		"that paper", "this paper", "uploaded file", "my document",
	},
	DocumentList: {
		"what documents", "list files", "my uploads", "what did i upload",
		"show documents", "available files", "uploaded documents",
	},
	MemoryRecall: {
		"remember", "recall", "we discussed", "earlier", "last time",
		"previously", "you said", "i told you", "our conversation",
	},
}

// scanOrder fixes tie-breaking, map iteration order is not deterministic.
var scanOrder = []Category{
	DocumentSummary, DocumentSearch, DocumentSpecific, DocumentList, MemoryRecall,
}

var toolsByCategory = map[Category][]string{
	DocumentSummary:  {"get_all_user_documents"},
	DocumentSearch:   {"search_documents"},
	DocumentSpecific: {"get_document_by_name"},
	DocumentList:     {"list_documents"},
	MemoryRecall:     {"search_memories", "get_recent_memories"},
	GeneralChat:      {},
	VagueQuery:       {},
}

var (
	atRefPattern = regexp.MustCompile(`@(\S+)`)

	// Bare references like "the document" are vague unless a concrete
	// filename follows. RE2 has no lookahead, so the exception is a second
	// pattern checked separately.
	bareRefPattern     = regexp.MustCompile(`(?i)\b(this|that|it|the document|the paper|the file)\b`)
	refWithFilePattern = regexp.MustCompile(`(?i)\b(this|that|it|the document|the paper|the file)\s+\w+\.(pdf|docx|txt)\b`)

	emptyObjectPattern = regexp.MustCompile(`(?i)^(summarize|explain|tell me about)\s*$`)
	fillerWordPattern  = regexp.MustCompile(`(?i)\b(something|stuff|things)\b`)
)

var docRefs = []string{
	"this paper", "the paper", "this document", "the document",
	"uploaded file", "my file", "the file",
}

// Detector classifies queries. A nil model disables the LLM fallback.
type Detector struct {
	model llm.Model
}

// NewDetector creates an intent detector.
func NewDetector(model llm.Model) *Detector {
	return &Detector{model: model}
}

// DetectFast classifies a query with keyword scoring only. It never blocks
// on the network.
func (d *Detector) DetectFast(query string, availableDocuments []string) Detected {
	lower := strings.ToLower(strings.TrimSpace(query))

	if m := atRefPattern.FindStringSubmatch(query); m != nil {
		return Detected{
			Category:   DocumentSpecific,
			Confidence: 0.95,
			Tools:      toolsByCategory[DocumentSpecific],
			Entities:   map[string]string{"filename": m[1]},
		}
	}

	for _, doc := range availableDocuments {
		if strings.Contains(lower, strings.ToLower(doc)) {
			return Detected{
				Category:   DocumentSpecific,
				Confidence: 0.9,
				Tools:      toolsByCategory[DocumentSpecific],
				Entities:   map[string]string{"filename": doc},
			}
		}
	}

	best := GeneralChat
	bestScore := 0
	for _, category := range scanOrder {
		score := 0
		for _, kw := range keywords[category] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}

	confidence := 0.5
	if bestScore > 0 {
		confidence = float64(bestScore)/float64(len(keywords[best])) + 0.3
		if confidence > 0.95 {
			confidence = 0.95
		}
	}

	isVague, clarification := checkVagueness(lower, availableDocuments)
	if isVague && (best == DocumentSummary || best == DocumentSearch || best == DocumentSpecific) {
		return Detected{
			Category:             VagueQuery,
			Confidence:           0.8,
			Tools:                []string{},
			IsVague:              true,
			ClarificationMessage: clarification,
			ClarificationOptions: availableDocuments,
		}
	}

	return Detected{
		Category:   best,
		Confidence: confidence,
		Tools:      toolsByCategory[best],
	}
}

// Detect classifies a query, falling back to the language model when the
// keyword pass is uncertain. Model failures degrade to the fast result.
func (d *Detector) Detect(ctx context.Context, query string, history []core.Message, availableDocuments []string) Detected {
	fast := d.DetectFast(query, availableDocuments)
	if d.model == nil {
		return fast
	}
	if fast.Confidence > 0.85 && !fast.IsVague {
		return fast
	}

	prompt := buildPrompt(query, history, availableDocuments)
	resp, err := d.model.GenerateStream(ctx, llm.Request{
		Messages:    []core.Message{core.UserMessage(prompt)},
		MaxTokens:   512,
		Temperature: 0.1,
	}, nil)
	if err != nil {
		log.Printf("[INTENT] Model classification failed, using keyword result: %v", err)
		return fast
	}
	return parseModelResponse(resp, availableDocuments)
}

func checkVagueness(lower string, availableDocuments []string) (bool, string) {
	multiDocClarification := func() string {
		return fmt.Sprintf("You have %d documents. Which one would you like me to use?", len(availableDocuments))
	}

	if bareRefPattern.MatchString(lower) && !refWithFilePattern.MatchString(lower) {
		if len(availableDocuments) > 1 {
			return true, multiDocClarification()
		}
		return true, "Which document are you referring to?"
	}
	if emptyObjectPattern.MatchString(lower) {
		return true, "What would you like me to summarize?"
	}
	if fillerWordPattern.MatchString(lower) {
		return true, "Could you be more specific about what you're looking for?"
	}

	if len(availableDocuments) > 1 {
		for _, ref := range docRefs {
			if !strings.Contains(lower, ref) {
				continue
			}
			specific := false
			for _, doc := range availableDocuments {
				if strings.Contains(lower, strings.ToLower(doc)) {
					specific = true
					break
				}
			}
			if !specific {
				return true, fmt.Sprintf("You have %d documents: %s. Which one would you like me to use?",
					len(availableDocuments), strings.Join(availableDocuments, ", "))
			}
		}
	}
	return false, ""
}

func buildPrompt(query string, history []core.Message, availableDocuments []string) string {
	docs := "None uploaded"
	if len(availableDocuments) > 0 {
		docs = strings.Join(availableDocuments, ", ")
	}

	var b strings.Builder
	b.WriteString("Analyze this user query and determine the intent.\n\n")
	fmt.Fprintf(&b, "User query: %q\n\n", query)
	fmt.Fprintf(&b, "Available documents: %s\n\n", docs)
	b.WriteString("Recent conversation context (last 3 messages):\n")
	b.WriteString(formatHistory(history))
	b.WriteString("\n\nRespond in this exact format:\n")
	b.WriteString("INTENT: <one of: document_summary, document_search, document_specific, document_list, memory_recall, general_chat, vague_query>\n")
	b.WriteString("CONFIDENCE: <0.0 to 1.0>\n")
	b.WriteString("TOOLS: <comma-separated tool names to use, or \"none\">\n")
	b.WriteString("IS_VAGUE: <true or false>\n")
	b.WriteString("CLARIFICATION: <if vague, what to ask the user, otherwise \"none\">\n")
	b.WriteString("ENTITIES: <extracted entities like filename=X, otherwise \"none\">\n")
	return b.String()
}

func formatHistory(history []core.Message) string {
	if len(history) == 0 {
		return "No recent conversation"
	}
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		content := msg.Content
		if runes := []rune(content); len(runes) > 100 {
			content = string(runes[:100])
		}
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, content))
	}
	return strings.Join(lines, "\n")
}

func parseModelResponse(resp string, availableDocuments []string) Detected {
	fields := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(resp), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	category := Category(strings.ReplaceAll(strings.ToLower(fields["INTENT"]), " ", "_"))
	if !validCategories[category] {
		category = GeneralChat
	}

	// The model is told 0.0 to 1.0 but not trusted to comply.
	confidence := 0.7
	if v, err := strconv.ParseFloat(fields["CONFIDENCE"], 64); err == nil {
		confidence = math.Min(math.Max(v, 0), 1)
	}

	var tools []string
	for _, t := range strings.Split(fields["TOOLS"], ",") {
		t = strings.TrimSpace(t)
		if t != "" && t != "none" {
			tools = append(tools, t)
		}
	}
	if len(tools) == 0 {
		tools = toolsByCategory[category]
	}

	isVague := strings.EqualFold(fields["IS_VAGUE"], "true")
	clarification := fields["CLARIFICATION"]
	if strings.EqualFold(clarification, "none") {
		clarification = ""
	}

	entities := make(map[string]string)
	if e := fields["ENTITIES"]; e != "" && !strings.EqualFold(e, "none") {
		for _, pair := range strings.Split(e, ",") {
			if k, v, ok := strings.Cut(pair, "="); ok {
				entities[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
	}

	d := Detected{
		Category:             category,
		Confidence:           confidence,
		Tools:                tools,
		IsVague:              isVague,
		ClarificationMessage: clarification,
		Entities:             entities,
	}
	if isVague {
		d.ClarificationOptions = availableDocuments
	}
	return d
}
