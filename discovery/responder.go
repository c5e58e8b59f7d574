// Package discovery answers x402 discovery queries with the catalog of
// payable resources a server protects.
package discovery

import (
	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/requirements"
	"github.com/vitwit/x402pay/types"
)

// Responder builds discovery payloads from the server configuration.
type Responder struct {
	cfg     *config.Config
	builder *requirements.Builder
	logger  logger.Logger
}

func NewResponder(cfg *config.Config, l logger.Logger) *Responder {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &Responder{
		cfg:     cfg,
		builder: requirements.NewBuilder(cfg),
		logger:  l,
	}
}

// Discover lists every configured resource once per type tag, in
// configuration order. Two calls over the same configuration return equal
// payloads.
func (r *Responder) Discover() (*types.DiscoveryPayload, error) {
	feePayer := r.cfg.DiscoveryFeePayer()
	items := make([]types.ResourceInfo, 0, len(r.cfg.Resources)*2)

	for _, res := range r.cfg.Resources {
		tags := res.Types
		if len(tags) == 0 {
			tags = []string{string(types.ResourceTypeHTTP)}
		}

		for _, tag := range tags {
			// fresh accepts per item so callers may mutate one without touching the others
			accepts, err := r.builder.All(res, feePayer)
			if err != nil {
				r.logger.Error("discovery failed", map[string]any{
					"resource": res.URL,
					"error":    err.Error(),
				})
				return nil, err
			}

			items = append(items, types.ResourceInfo{
				Resource:    res.URL,
				Type:        types.ResourceType(tag),
				X402Version: types.X402Version1,
				Accepts:     accepts,
				Title:       res.Title,
				Description: res.Description,
				HeaderImage: res.HeaderImage,
				LastUpdated: r.cfg.DiscoveryLastUpdated,
				Metadata:    res.Metadata,
			})
		}
	}

	r.logger.Debug("discovery served", map[string]any{"items": len(items)})

	return &types.DiscoveryPayload{
		X402Version: types.X402Version1,
		Items:       items,
		Pagination: types.DiscoveryPagination{
			Limit:  len(items),
			Offset: 0,
			Total:  len(items),
		},
	}, nil
}
