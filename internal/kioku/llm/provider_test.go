package llm_test

import (
	"testing"

	"github.com/bdobrica/Kioku/internal/kioku/llm"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    llm.Kind
		wantErr bool
	}{
		{"openai", llm.KindOpenAI, false},
		{"", llm.KindOpenAI, false},
		{"Anthropic", llm.KindAnthropic, false},
		{" gemini ", llm.KindGemini, false},
		{"cohere", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := llm.ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindDefaults(t *testing.T) {
	if llm.KindOpenAI.DefaultModel() != "gpt-4" {
		t.Errorf("openai default model = %q", llm.KindOpenAI.DefaultModel())
	}
	if llm.KindOpenAI.DisplayName() != "OpenAI" {
		t.Errorf("openai display name = %q", llm.KindOpenAI.DisplayName())
	}
	if llm.KindAnthropic.DisplayName() != "Anthropic" || llm.KindGemini.DisplayName() != "Gemini" {
		t.Error("unexpected display names")
	}
}

func TestNewFactory(t *testing.T) {
	for _, kind := range []llm.Kind{llm.KindOpenAI, llm.KindAnthropic, llm.KindGemini} {
		t.Run(string(kind), func(t *testing.T) {
			factory, err := llm.NewFactory(kind, llm.Options{})
			if err != nil {
				t.Fatalf("NewFactory: %v", err)
			}
			p, err := factory("key-123456789")
			if err != nil {
				t.Fatalf("factory: %v", err)
			}
			if p == nil {
				t.Fatal("nil provider")
			}
		})
	}

	if _, err := llm.NewFactory("bogus", llm.Options{}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
