package utils

import (
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantError bool
	}{
		{"gpt-4o model", "gpt-4o", false},
		{"deepseek-chat uses fallback", "deepseek-chat", false},
		{"deepseek-reasoner uses fallback", "deepseek-reasoner", false},
		{"unknown model uses fallback", "totally-unknown-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := NewTokenCounter(tt.model)
			if (err != nil) != tt.wantError {
				t.Errorf("NewTokenCounter() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if counter != nil && counter.Model() != tt.model {
				t.Errorf("Model() = %v, want %v", counter.Model(), tt.model)
			}
		})
	}
}

func TestTokenCounter_Count(t *testing.T) {
	counter, err := NewTokenCounter("deepseek-chat")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{"empty string", "", 0, 0},
		{"simple sentence", "Hello, world!", 3, 5},
		{"code snippet", "func main() { fmt.Println(\"Hello\") }", 8, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := counter.Count(tt.text)
			if count < tt.minTokens || count > tt.maxTokens {
				t.Errorf("Count() = %v, want between %v and %v for %q",
					count, tt.minTokens, tt.maxTokens, tt.text)
			}
		})
	}
}

func TestTokenCounter_FitWithinLimit(t *testing.T) {
	counter, err := NewTokenCounter("deepseek-chat")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	messages := []Message{
		{Role: "user", Content: "Message 1"},
		{Role: "assistant", Content: "Response 1"},
		{Role: "user", Content: "Message 2"},
		{Role: "assistant", Content: "Response 2"},
		{Role: "user", Content: "Message 3"},
	}

	tests := []struct {
		name         string
		maxTokens    int
		expectEmpty  bool
		expectAllFit bool
	}{
		{"very low limit", 5, true, false},
		{"moderate limit", 50, false, false},
		{"high limit", 1000, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fitted := counter.FitWithinLimit(messages, tt.maxTokens)

			if tt.expectEmpty && len(fitted) > 0 {
				t.Errorf("expected empty result, got %d messages", len(fitted))
			}
			if tt.expectAllFit && len(fitted) != len(messages) {
				t.Errorf("expected all messages to fit, got %d/%d", len(fitted), len(messages))
			}

			if len(fitted) > 0 {
				if tokens := counter.CountMessages(fitted); tokens > tt.maxTokens {
					t.Errorf("fitted result has %d tokens, exceeds %d", tokens, tt.maxTokens)
				}
				// Most recent turns survive.
				if fitted[len(fitted)-1].Content != messages[len(messages)-1].Content {
					t.Error("most recent message should be kept")
				}
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"test", 1},
		{"testtest", 2},
		{"hellohello", 2},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestEncodingForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "o200k_base"},
		{"deepseek-chat", "cl100k_base"},
		{"deepseek-chat-v2", "cl100k_base"},
		{"unknown-model", "cl100k_base"},
	}

	for _, tt := range tests {
		if got := EncodingForModel(tt.model); got != tt.want {
			t.Errorf("EncodingForModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
