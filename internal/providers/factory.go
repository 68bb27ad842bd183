package providers

import (
	"log"
	"time"

	"github.com/mohammad-safakhou/trender/config"
	"github.com/mohammad-safakhou/trender/internal/engine"
)

// Build constructs a registry entry for every enabled search provider that
// has at least one credential in the environment. Providers without keys are
// skipped with a log line, never stubbed. Priority follows declaration order:
// direct web indexes first, then neural search, then video and social.
func Build(cfg *config.Config, httpc *engine.HTTPClient, logger *log.Logger) []*engine.Entry {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	sc := cfg.Search
	var entries []*engine.Entry
	priority := 0

	add := func(id string, pc config.ProviderConfig, cap engine.Capability, build func(pool *engine.CredentialPool) engine.SearchProvider) {
		priority++
		if !pc.Enabled {
			logger.Printf("provider=%s disabled in config", id)
			return
		}
		pool := engine.NewCredentialPool(config.Credentials(id))
		if pool.Size() == 0 {
			logger.Printf("provider=%s has no credentials, skipping", id)
			return
		}
		entries = append(entries, &engine.Entry{
			ID:       id,
			Priority: priority,
			Caps:     []engine.Capability{cap},
			Timeout:  timeoutOr(pc.Timeout, sc.Timeout),
			Pool:     pool,
			Search:   build(pool),
		})
		logger.Printf("provider=%s registered priority=%d credentials=%d", id, priority, pool.Size())
	}

	add("serper", sc.Providers.Serper, engine.CapWebSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewSerper(pool, httpc, SerperConfig{
			BaseURL:   sc.Providers.Serper.BaseURL,
			Region:    sc.Region,
			Language:  sc.Language,
			QueryHint: sc.QueryHint,
			Limit:     sc.Providers.Serper.Limit,
		})
	})

	if sc.Providers.Google.CSEID == "" {
		priority++
		logger.Printf("provider=google missing cse id, skipping")
	} else {
		add("google", sc.Providers.Google.ProviderConfig, engine.CapWebSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
			return NewGoogleCSE(pool, httpc, GoogleCSEConfig{
				BaseURL:      sc.Providers.Google.BaseURL,
				CSEID:        sc.Providers.Google.CSEID,
				Region:       sc.Region,
				Language:     sc.Language,
				QueryHint:    sc.QueryHint,
				Limit:        sc.Providers.Google.Limit,
				DateRestrict: sc.Providers.Google.DateRestrict,
			})
		})
	}

	add("firecrawl", sc.Providers.Firecrawl.ProviderConfig, engine.CapWebSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewFirecrawl(pool, httpc, FirecrawlConfig{
			BaseURL:     sc.Providers.Firecrawl.BaseURL,
			QueryHint:   sc.QueryHint,
			Limit:       sc.Providers.Firecrawl.Limit,
			ScrapeLimit: sc.Providers.Firecrawl.ScrapeLimit,
		})
	})

	add("exa", sc.Providers.Exa.ProviderConfig, engine.CapNeuralSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewExa(pool, httpc, ExaConfig{
			BaseURL:            sc.Providers.Exa.BaseURL,
			QueryHint:          sc.QueryHint,
			Limit:              sc.Providers.Exa.Limit,
			IncludeDomains:     sc.Providers.Exa.IncludeDomains,
			StartPublishedDate: sc.Providers.Exa.StartPublishedDate,
		})
	})

	add("jina", sc.Providers.Jina.ProviderConfig, engine.CapNeuralSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewJina(pool, httpc, JinaConfig{
			BaseURL:   sc.Providers.Jina.BaseURL,
			Target:    sc.Providers.Jina.Target,
			QueryHint: sc.QueryHint,
		})
	})

	add("youtube", sc.Providers.YouTube.ProviderConfig, engine.CapVideoSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewYouTube(pool, httpc, YouTubeConfig{
			BaseURL:        sc.Providers.YouTube.BaseURL,
			QueryHint:      sc.QueryHint,
			Limit:          sc.Providers.YouTube.Limit,
			RegionCode:     sc.Providers.YouTube.RegionCode,
			Language:       sc.Language,
			PublishedAfter: sc.Providers.YouTube.PublishedAfter,
		})
	})

	add("supadata", sc.Providers.Supadata.ProviderConfig, engine.CapSocialSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewSupadata(pool, httpc, SupadataConfig{
			BaseURL:   sc.Providers.Supadata.BaseURL,
			QueryHint: sc.QueryHint,
			Limit:     sc.Providers.Supadata.Limit,
			Platforms: sc.Providers.Supadata.Platforms,
		})
	})

	add("x", sc.Providers.X.ProviderConfig, engine.CapSocialSearch, func(pool *engine.CredentialPool) engine.SearchProvider {
		return NewX(pool, httpc, XConfig{
			BaseURL: sc.Providers.X.BaseURL,
			Lang:    xLang(sc.Providers.X.Lang, sc.Language),
			Limit:   sc.Providers.X.Limit,
		})
	})

	return entries
}

func timeoutOr(t, fallback time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return fallback
}

func xLang(lang, fallback string) string {
	if lang != "" {
		return lang
	}
	return fallback
}
