package generation

import (
	"log"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/engine"
)

// Build constructs a registry entry for every enabled model provider with
// credentials. The chain order comes from the configured priorities.
func Build(cfg *config.Config, httpc *engine.HTTPClient, logger *log.Logger) []*engine.Entry {
	if logger == nil {
		logger = log.New(log.Writer(), "[GEN] ", log.LstdFlags)
	}
	var entries []*engine.Entry
	for _, pc := range cfg.Generation.Providers {
		if !pc.Enabled {
			logger.Printf("provider=%s disabled in config", pc.ID)
			continue
		}
		pool := engine.NewCredentialPool(config.Credentials(pc.CredentialEnv))
		if pool.Size() == 0 {
			logger.Printf("provider=%s has no credentials, skipping", pc.ID)
			continue
		}

		var gen engine.GenerationProvider
		switch pc.Type {
		case "openai":
			gen = NewOpenAI(pc.ID, pool, httpc, OpenAIConfig{BaseURL: pc.BaseURL, Model: pc.Model})
		case "gemini":
			gen = NewGemini(pc.ID, pool, httpc, GeminiConfig{BaseURL: pc.BaseURL, Model: pc.Model})
		default:
			logger.Printf("provider=%s has unknown type %q, skipping", pc.ID, pc.Type)
			continue
		}

		caps := []engine.Capability{engine.CapGeneration}
		if pc.Tools {
			caps = append(caps, engine.CapTools)
		}
		entries = append(entries, &engine.Entry{
			ID:        pc.ID,
			Priority:  pc.Priority,
			Caps:      caps,
			Model:     pc.Model,
			MaxTokens: cfg.Generation.MaxTokens,
			Timeout:   pc.Timeout,
			Pool:      pool,
			Gen:       gen,
		})
		logger.Printf("provider=%s model=%s priority=%d tools=%t credentials=%d",
			pc.ID, pc.Model, pc.Priority, pc.Tools, pool.Size())
	}
	return entries
}
