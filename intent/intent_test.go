package intent_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/intent"
	"github.com/recallhq/recall-go-sdk/llm"
)

func TestDetectFast_AtSyntax(t *testing.T) {
	d := intent.NewDetector(nil)

	got := d.DetectFast("summarize @report.pdf for me", nil)
	if got.Category != intent.DocumentSpecific {
		t.Fatalf("expected document_specific, got %s", got.Category)
	}
	if got.Entities["filename"] != "report.pdf" {
		t.Errorf("filename not extracted: %v", got.Entities)
	}
	if got.Confidence < 0.9 {
		t.Errorf("explicit reference should be high confidence, got %v", got.Confidence)
	}
}

func TestDetectFast_KnownFilenameInQuery(t *testing.T) {
	d := intent.NewDetector(nil)

	got := d.DetectFast("what does Thesis.PDF conclude", []string{"thesis.pdf", "notes.txt"})
	if got.Category != intent.DocumentSpecific {
		t.Fatalf("expected document_specific, got %s", got.Category)
	}
	if got.Entities["filename"] != "thesis.pdf" {
		t.Errorf("expected case-insensitive filename match, got %v", got.Entities)
	}
}

func TestDetectFast_Categories(t *testing.T) {
	d := intent.NewDetector(nil)
	cases := []struct {
		query string
		want  intent.Category
	}{
		{"do you remember what we discussed earlier", intent.MemoryRecall},
		{"what documents have I uploaded", intent.DocumentList},
		{"find where the methodology is described in my notes", intent.DocumentSearch},
		{"how is the weather today", intent.GeneralChat},
	}
	for _, tc := range cases {
		got := d.DetectFast(tc.query, nil)
		if got.Category != tc.want {
			t.Errorf("DetectFast(%q) = %s, want %s", tc.query, got.Category, tc.want)
		}
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Errorf("confidence out of range for %q: %v", tc.query, got.Confidence)
		}
	}
}

func TestDetectFast_VagueDocumentQuery(t *testing.T) {
	d := intent.NewDetector(nil)
	docs := []string{"a.pdf", "b.pdf"}

	got := d.DetectFast("summarize the document", docs)
	if got.Category != intent.VagueQuery {
		t.Fatalf("expected vague_query, got %s", got.Category)
	}
	if !got.IsVague || got.ClarificationMessage == "" {
		t.Errorf("vague query must carry a clarification: %+v", got)
	}
	if len(got.ClarificationOptions) != 2 {
		t.Errorf("clarification should offer the documents, got %v", got.ClarificationOptions)
	}
}

func TestDetectFast_SpecificDocumentNotVague(t *testing.T) {
	d := intent.NewDetector(nil)
	docs := []string{"a.pdf", "b.pdf"}

	got := d.DetectFast("summarize the document a.pdf", docs)
	if got.IsVague {
		t.Errorf("naming the document should not be vague: %+v", got)
	}
	if got.Category != intent.DocumentSpecific {
		t.Errorf("expected document_specific, got %s", got.Category)
	}
}

// scriptedModel returns a canned classification response.
type scriptedModel struct {
	response string
	err      error
	called   bool
}

func (m *scriptedModel) GenerateStream(ctx context.Context, req llm.Request, onChunk llm.ChunkFunc) (string, error) {
	m.called = true
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *scriptedModel) Summarize(ctx context.Context, texts []string) (string, error) {
	return "", fmt.Errorf("not used")
}

func TestDetect_ModelEscalation(t *testing.T) {
	model := &scriptedModel{response: `INTENT: memory_recall
CONFIDENCE: 0.9
TOOLS: search_memories
IS_VAGUE: false
CLARIFICATION: none
ENTITIES: none`}
	d := intent.NewDetector(model)

	// Low keyword confidence forces the model path.
	got := d.Detect(context.Background(), "that thing from before", nil, nil)
	if !model.called {
		t.Fatal("low-confidence query should escalate to the model")
	}
	if got.Category != intent.MemoryRecall {
		t.Errorf("expected memory_recall from model, got %s", got.Category)
	}
	if got.Confidence != 0.9 {
		t.Errorf("expected parsed confidence 0.9, got %v", got.Confidence)
	}
	if len(got.Tools) != 1 || got.Tools[0] != "search_memories" {
		t.Errorf("expected parsed tools, got %v", got.Tools)
	}
}

func TestDetect_ConfidenceClamped(t *testing.T) {
	cases := []struct {
		reply string
		want  float64
	}{
		{"1.5", 1},
		{"-0.25", 0},
		{"0.6", 0.6},
	}
	for _, tc := range cases {
		model := &scriptedModel{response: fmt.Sprintf(
			"INTENT: memory_recall\nCONFIDENCE: %s\nTOOLS: none\nIS_VAGUE: false\nCLARIFICATION: none\nENTITIES: none",
			tc.reply)}
		d := intent.NewDetector(model)

		got := d.Detect(context.Background(), "that thing from before", nil, nil)
		if got.Confidence != tc.want {
			t.Errorf("model confidence %s should yield %v, got %v", tc.reply, tc.want, got.Confidence)
		}
	}
}

func TestDetect_ModelFailureFallsBack(t *testing.T) {
	model := &scriptedModel{err: fmt.Errorf("%w: down", core.ErrModelUnavailable)}
	d := intent.NewDetector(model)

	got := d.Detect(context.Background(), "how is the weather today", nil, nil)
	if got.Category != intent.GeneralChat {
		t.Errorf("model failure should fall back to keyword result, got %s", got.Category)
	}
}

func TestDetect_HighConfidenceSkipsModel(t *testing.T) {
	model := &scriptedModel{response: "INTENT: general_chat"}
	d := intent.NewDetector(model)

	got := d.Detect(context.Background(), "summarize @paper.pdf", nil, nil)
	if model.called {
		t.Error("high-confidence keyword result should not call the model")
	}
	if got.Category != intent.DocumentSpecific {
		t.Errorf("expected document_specific, got %s", got.Category)
	}
}

func TestDetect_MalformedModelResponse(t *testing.T) {
	model := &scriptedModel{response: "INTENT: not_a_real_intent\nCONFIDENCE: high"}
	d := intent.NewDetector(model)

	got := d.Detect(context.Background(), "that thing from before", nil, nil)
	if got.Category != intent.GeneralChat {
		t.Errorf("unknown intent label should default to general_chat, got %s", got.Category)
	}
	if got.Confidence != 0.7 {
		t.Errorf("unparseable confidence should default to 0.7, got %v", got.Confidence)
	}
}
