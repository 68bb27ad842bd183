package generation

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/engine"
)

func TestBuildChainFromConfig(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-1")
	t.Setenv("OPENROUTER_API_KEY_1", "or-2")
	t.Setenv("GEMINI_API_KEY", "gm-1")
	t.Setenv("GROQ_API_KEY", "")

	cfg := &config.Config{}
	cfg.Generation.MaxTokens = 2048
	cfg.Generation.Providers = []config.GenerationProviderConfig{
		{ID: "openrouter_grok", Type: "openai", BaseURL: "https://openrouter.ai/api/v1",
			Model: "x-ai/grok-2", Priority: 1, Tools: true, Enabled: true,
			Timeout: 90 * time.Second, CredentialEnv: "OPENROUTER"},
		{ID: "gemini", Type: "gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Model: "gemini-2.0-flash", Priority: 3, Enabled: true, CredentialEnv: "GEMINI"},
		{ID: "groq", Type: "openai", Model: "llama-3.3-70b", Priority: 4, Enabled: true,
			CredentialEnv: "GROQ"}, // no credentials, skipped
		{ID: "disabled", Type: "openai", Model: "x", Priority: 5, CredentialEnv: "OPENROUTER"},
		{ID: "weird", Type: "anthropic", Model: "x", Priority: 6, Enabled: true,
			CredentialEnv: "OPENROUTER"}, // unknown type, skipped
	}

	entries := Build(cfg, testHTTPClient(), log.New(io.Discard, "", 0))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	grok := entries[0]
	if grok.ID != "openrouter_grok" || grok.Priority != 1 {
		t.Fatalf("unexpected first entry %s priority=%d", grok.ID, grok.Priority)
	}
	if len(grok.Caps) != 2 || grok.Caps[1] != engine.CapTools {
		t.Fatalf("expected tools capability, got %v", grok.Caps)
	}
	if grok.Model != "x-ai/grok-2" || grok.MaxTokens != 2048 {
		t.Fatalf("unexpected model/max tokens %q/%d", grok.Model, grok.MaxTokens)
	}
	if grok.Pool.Size() != 2 {
		t.Fatalf("expected 2 credentials, got %d", grok.Pool.Size())
	}
	if _, ok := grok.Gen.(*OpenAI); !ok {
		t.Fatalf("expected *OpenAI adapter, got %T", grok.Gen)
	}

	gem := entries[1]
	if gem.ID != "gemini" {
		t.Fatalf("unexpected second entry %s", gem.ID)
	}
	if len(gem.Caps) != 1 || gem.Caps[0] != engine.CapGeneration {
		t.Fatalf("expected generation-only caps, got %v", gem.Caps)
	}
	if _, ok := gem.Gen.(*Gemini); !ok {
		t.Fatalf("expected *Gemini adapter, got %T", gem.Gen)
	}
}
