// Package requirements builds the payment requirements a resource server
// answers a 402 with, from the server configuration.
package requirements

import (
	"fmt"
	"strconv"

	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

// Builder turns configured resources into PaymentRequirements.
type Builder struct {
	cfg *config.Config
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// Response builds a fresh 402 body for resource on chain. chain is the raw
// X402-Chain header value and is matched case-insensitively.
func (b *Builder) Response(resource config.Resource, chain, feePayer string) (*types.PaymentRequirementsResponse, error) {
	req, err := b.Requirement(resource, chain, feePayer)
	if err != nil {
		return nil, err
	}

	resp := types.NewPaymentRequirementsResponse()
	resp.Add(*req)
	return resp, nil
}

// Requirement builds the single requirement of resource on chain.
func (b *Builder) Requirement(resource config.Resource, chain, feePayer string) (*types.PaymentRequirements, error) {
	network, chainCfg, ok := b.cfg.Chain(chain)
	if !ok {
		return nil, &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("chain %q is not supported by this server", chain),
		}
	}

	amount, err := utils.ToAtomicUnits(resource.Price, chainCfg.Asset.Decimals)
	if err != nil {
		return nil, &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("price of %s cannot be paid on %s", resource.Path, network),
			Err:     err,
		}
	}

	return &types.PaymentRequirements{
		Scheme:            string(types.SchemeExact),
		Network:           network.String(),
		MaxAmountRequired: strconv.FormatUint(amount, 10),
		Resource:          resource.URL,
		Description:       resource.Description,
		MimeType:          resource.MimeType,
		PayTo:             b.cfg.Payment.ResourceServer,
		MaxTimeoutSeconds: resource.MaxTimeoutSeconds,
		Asset:             chainCfg.Asset.Mint,
		Extra: types.PaymentExtra{
			FeePayer:            feePayer,
			TokenExtensionsMint: chainCfg.Asset.TokenExtensionsMint,
			Decimals:            chainCfg.Asset.Decimals,
		},
	}, nil
}

// All builds one requirement per configured chain, in chain id order.
func (b *Builder) All(resource config.Resource, feePayer string) ([]types.PaymentRequirements, error) {
	ids := b.cfg.ChainIDs()
	accepts := make([]types.PaymentRequirements, 0, len(ids))
	for _, id := range ids {
		req, err := b.Requirement(resource, id, feePayer)
		if err != nil {
			return nil, err
		}
		accepts = append(accepts, *req)
	}
	return accepts, nil
}
