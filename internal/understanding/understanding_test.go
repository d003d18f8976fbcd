package understanding

import (
	"strings"
	"testing"

	"github.com/koopa0/rae/internal/retrieval"
)

func TestParseResponse(t *testing.T) {
	res, err := parseResponse(`{"intent":"relational","confidence":0.85,"entities":["Alice"],"concepts":["deployment"]}`)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if res.Intent != retrieval.IntentRelational {
		t.Errorf("Intent = %s, want relational", res.Intent)
	}
	if res.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", res.Confidence)
	}
	if len(res.Entities) != 1 || res.Entities[0] != "Alice" {
		t.Errorf("Entities = %v", res.Entities)
	}
}

func TestParseResponseCodeFenced(t *testing.T) {
	res, err := parseResponse("```json\n{\"intent\":\"factual\",\"confidence\":0.7}\n```")
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if res.Intent != retrieval.IntentFactual {
		t.Errorf("Intent = %s, want factual", res.Intent)
	}
}

func TestParseResponseNormalizesIntentCase(t *testing.T) {
	res, err := parseResponse(`{"intent":" Temporal ","confidence":0.6}`)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if res.Intent != retrieval.IntentTemporal {
		t.Errorf("Intent = %s, want temporal", res.Intent)
	}
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "  \n "},
		{"not json", "the query looks relational to me"},
		{"unknown intent", `{"intent":"philosophical","confidence":0.9}`},
		{"oversized", "{" + strings.Repeat(" ", maxResponseBytes) + "}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseResponse(tt.text); err == nil {
				t.Error("parseResponse() succeeded, want error")
			}
		})
	}
}

func TestParseResponseClampsConfidence(t *testing.T) {
	res, err := parseResponse(`{"intent":"factual","confidence":1.8}`)
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5 (out-of-range default)", res.Confidence)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConversationBlock(t *testing.T) {
	if got := conversationBlock(nil); got != "" {
		t.Errorf("conversationBlock(nil) = %q, want empty", got)
	}

	turns := []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"}
	got := conversationBlock(turns)
	if strings.Contains(got, "t1") || strings.Contains(got, "t2") {
		t.Error("conversation block kept turns past the cap")
	}
	if !strings.Contains(got, "t8") {
		t.Error("conversation block dropped the newest turn")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, "model"); err == nil {
		t.Error("New(nil genkit) succeeded")
	}
}
