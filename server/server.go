// Package server exposes the Evice HTTP API: free endpoints, paywalled
// content endpoints, and the budget deposit flow.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"github.com/evice-protocol/evice"
	"github.com/evice-protocol/evice/assets"
	"github.com/evice-protocol/evice/ledger"
	"github.com/evice-protocol/evice/paywall"
	evicegin "github.com/evice-protocol/evice/pkg/gin"
)

// Endpoint prices in NEURO.
var (
	premiumPrice = decimal.RequireFromString("0.01")
	contextPrice = decimal.RequireFromString("0.005")
)

// Server holds the API's collaborators.
type Server struct {
	cfg      Config
	store    ledger.Store
	verifier paywall.TxVerifier
	assets   assets.Store
}

// New assembles a server from its collaborators.
func New(cfg Config, store ledger.Store, verifier paywall.TxVerifier, assetStore assets.Store) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		verifier: verifier,
		assets:   assetStore,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	api.GET("/public", s.handlePublic)
	api.GET("/agent-tools", s.handleAgentTools)
	api.GET("/get-current-budget", s.handleGetCurrentBudget)
	api.POST("/confirm-budget-deposit", s.handleConfirmDeposit)

	api.GET("/premium-data",
		evicegin.PaymentMiddleware(premiumPrice, s.cfg.RecipientWallet, s.store, s.verifier),
		s.handlePremiumData)
	api.GET("/get-context",
		evicegin.PaymentMiddleware(contextPrice, s.cfg.RecipientWallet, s.store, s.verifier),
		s.handleGetContext)

	return router
}

func (s *Server) handlePublic(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Free data for you all!"})
}

func (s *Server) handleAgentTools(c *gin.Context) {
	type uiTool struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Endpoint    string          `json:"endpoint"`
		Cost        decimal.Decimal `json:"cost"`
	}

	tools := make([]uiTool, 0, len(s.cfg.Tools))
	for _, t := range s.cfg.Tools {
		tools = append(tools, uiTool{
			ID:          strings.TrimPrefix(t.Name, "get_"),
			Description: t.Description,
			Endpoint:    t.Endpoint,
			Cost:        t.Price,
		})
	}
	c.JSON(http.StatusOK, tools)
}

func (s *Server) handlePremiumData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":       "This is your premium data sir.",
		"paymentMethod": evicegin.PaymentMethod(c),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetContext(c *gin.Context) {
	docID := c.Query("docId")
	ual, ok := s.cfg.KnowledgeAssets[docID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset UAL not defined for this topic."})
		return
	}

	asset, err := s.assets.Get(c.Request.Context(), ual)
	if errors.Is(err, assets.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found."})
		return
	}
	if err != nil {
		log.Printf("server: asset fetch failed for %s: %v", ual, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch from DKG Node. Ensure node is running.",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"context":       asset.Content,
		"metadata":      asset.Metadata,
		"paymentMethod": evicegin.PaymentMethod(c),
	})
}

func (s *Server) handleGetCurrentBudget(c *gin.Context) {
	payerAddress := c.Query("payerAddress")
	if payerAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payerAddress required"})
		return
	}

	balance, err := s.store.Balance(c.Request.Context(), payerAddress)
	if err != nil {
		log.Printf("server: budget lookup failed for %s: %v", payerAddress, err)
		balance = decimal.Zero
	}
	c.JSON(http.StatusOK, gin.H{"currentBudget": balance.String()})
}

// depositRequest is the confirm-budget-deposit body after schema validation.
type depositRequest struct {
	TxHash       string      `json:"txHash"`
	Reference    string      `json:"reference"`
	PayerAddress string      `json:"payerAddress"`
	Amount       json.Number `json:"amount"`
}

func (s *Server) handleConfirmDeposit(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete data"})
		return
	}

	if err := validateDepositBody(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete data", "details": err.Error()})
		return
	}

	var req depositRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete data", "details": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incomplete data", "details": "amount must be a non-negative number"})
		return
	}

	ctx := c.Request.Context()
	if spent, err := s.store.IsSpent(ctx, req.Reference); err == nil && spent {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Tx already used"})
		return
	}

	verification := s.verifier.VerifyTransaction(ctx, req.TxHash, req.Reference, amount, s.cfg.RecipientWallet)
	if !verification.Success {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Deposit verification failed",
			"details": verification.Err.Message,
		})
		return
	}
	if !strings.EqualFold(verification.Sender, req.PayerAddress) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Deposit verification failed",
			"details": fmt.Sprintf("sender %s does not match payer %s", verification.Sender, req.PayerAddress),
		})
		return
	}

	// Exactly one confirmation per reference: the marker is claimed before
	// crediting, so a concurrent duplicate cannot double-credit.
	ok, err := s.store.MarkSpent(ctx, req.Reference, ledger.DefaultSpentRefTTL)
	if err != nil {
		log.Printf("server: marking reference %s failed: %v", req.Reference, err)
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Tx already used"})
		return
	}

	// Credit what was actually received, not what was requested, so
	// overpayment lands in the budget.
	newBudget, err := s.store.Credit(ctx, req.PayerAddress, verification.AmountReceived)
	if err != nil {
		log.Printf("server: crediting %s failed: %v", req.PayerAddress, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record deposit"})
		return
	}

	log.Printf("server: deposit of %s confirmed for %s", verification.AmountReceived, evice.NormalizeAddress(req.PayerAddress))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"newBudget": newBudget.InexactFloat64(),
	})
}

// validateDepositBody checks the request against the deposit JSON schema.
func validateDepositBody(body []byte) error {
	result, err := gojsonschema.Validate(depositSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

const depositSchema = `{
	"type": "object",
	"required": ["txHash", "reference", "payerAddress", "amount"],
	"properties": {
		"txHash": {"type": "string", "minLength": 1},
		"reference": {"type": "string", "minLength": 1},
		"payerAddress": {"type": "string", "minLength": 1},
		"amount": {"type": "number"}
	}
}`

var depositSchemaLoader = gojsonschema.NewStringLoader(depositSchema)
