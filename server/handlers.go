package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/instructions"
	"github.com/vitwit/x402pay/types"
)

func (s *Server) handleResource(res config.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := s.negotiator.Negotiate(res, c.Request.Header)
		if out.Err != nil {
			_ = c.Error(out.Err)
		}
		c.JSON(out.Status, out.Body)
	}
}

func (s *Server) handleDiscover(c *gin.Context) {
	payload, err := s.discovery.Discover()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleMintInfo(c *gin.Context) {
	mint, err := instructions.DecodeAddress("address", c.Param("address"))
	if err != nil {
		s.writeError(c, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidAddress,
			Message: "Invalid Base58 address",
			Err:     err,
		})
		return
	}
	network := mintNetwork(c.Param("chain"))

	if info, ok, err := s.store.MintInfo(network, mint.String()); err != nil {
		s.writeError(c, err)
		return
	} else if ok {
		c.JSON(http.StatusOK, info)
		return
	}

	ledger, err := s.ledger(network)
	if err != nil {
		s.writeError(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.callTimeout())
	defer cancel()
	info, err := ledger.MintInfo(ctx, mint)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.store.SaveMintInfo(network, mint.String(), info); err != nil {
		s.logger.Warn("failed to cache mint info", map[string]any{"mint": mint.String(), "error": err})
	}
	c.JSON(http.StatusOK, info)
}

// callTimeout bounds a single ledger call.
func (s *Server) callTimeout() time.Duration {
	if s.cfg.DefaultTimeout > 0 {
		return s.cfg.DefaultTimeout
	}
	return 30 * time.Second
}

// mintNetwork resolves the chain path segment. Full chain ids and the short
// "mainnet" are understood; anything else reads from devnet.
func mintNetwork(chain string) types.Network {
	if network, ok := types.ParseNetwork(chain); ok {
		return network
	}
	if strings.EqualFold(chain, "mainnet") {
		return types.NetworkSolanaMainnet
	}
	return types.NetworkSolanaDevnet
}

func (s *Server) handleOptimizeTx(c *gin.Context) {
	var body types.TxBase64
	if !s.bindTx(c, &body) {
		return
	}

	out, err := s.gateway.Optimize(c.Request.Context(), body.Data)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSendOptimizedTx(c *gin.Context) {
	var body types.TxBase64
	if !s.bindTx(c, &body) {
		return
	}

	sig, err := s.gateway.Send(c.Request.Context(), body.Data)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewSendTxResponse(sig))
}

func (s *Server) bindTx(c *gin.Context, body *types.TxBase64) bool {
	if err := c.ShouldBindJSON(body); err != nil || body.Data == "" {
		s.writeError(c, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidTransaction,
			Message: "Invalid transaction",
			Err:     err,
		})
		return false
	}
	return true
}

func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var xe *types.X402Error
	if !errors.As(err, &xe) {
		xe = &types.X402Error{Kind: types.KindDownstream, Code: types.ErrNetworkError, Message: err.Error()}
	}
	c.AbortWithStatusJSON(types.HTTPStatus(err), xe)
}
