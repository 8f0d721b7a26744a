package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AlexZinkM/linera-client/internal/config"
	"github.com/AlexZinkM/linera-client/internal/model"
	"github.com/AlexZinkM/linera-client/linera"

	"go.uber.org/zap"
)

// LineraHandler serves wallet, chain and deployment operations of a client.
type LineraHandler struct {
	client    *linera.Client
	walletDir string // wallets are persisted here when set
	log       *zap.Logger
}

// NewLineraHandler creates a new LineraHandler
func NewLineraHandler(client *linera.Client, walletDir string, log *zap.Logger) *LineraHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &LineraHandler{client: client, walletDir: walletDir, log: log.Named("http")}
}

// Generate handles POST /wallet/generate
// @Summary      Generate new wallet
// @Description  Generates a new wallet key pair and makes it the active wallet
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.GenerateResponse
// @Failure      409  {object}  model.ErrorResponse
// @Router       /wallet/generate [post]
func (h *LineraHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. should be POST", http.StatusMethodNotAllowed)
		return
	}

	if h.walletDir != "" {
		if err := linera.ValidateWalletDir(h.walletDir); err == nil {
			writeError(w, http.StatusConflict, errors.New("wallet directory already holds a wallet"))
			return
		}
	}

	wallet, err := h.client.CreateWallet()
	if err != nil {
		h.fail(w, err)
		return
	}

	if h.walletDir != "" {
		// Get password as []byte, use it, then zero it immediately
		passwordBytes, err := config.GetWalletPasswordBytes()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		defer clear(passwordBytes) // Always clear password from memory

		if err := linera.SaveWallet(h.walletDir, wallet, passwordBytes); err != nil {
			h.fail(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, model.GenerateResponse{
		Success: true,
		Message: "Wallet generated successfully",
		ID:      wallet.ID,
		Owner:   wallet.Owner,
	})
}

// Chains handles GET /wallet/chains
// @Summary      List chains of the active wallet
// @Tags         wallet
// @Produce      json
// @Success      200  {object}  model.ChainsResponse
// @Failure      404  {object}  model.ErrorResponse
// @Router       /wallet/chains [get]
func (h *LineraHandler) Chains(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	wallet, err := h.client.Wallet()
	if err != nil {
		h.fail(w, err)
		return
	}
	chains := wallet.Chains
	if chains == nil {
		chains = []model.ChainRef{}
	}
	writeJSON(w, http.StatusOK, model.ChainsResponse{
		WalletID: wallet.ID,
		Owner:    wallet.Owner,
		Chains:   chains,
	})
}

// OpenChain handles POST /chain/open
// @Summary      Open a new chain
// @Description  Requests a new chain for the wallet (the active wallet when walletId is empty)
// @Tags         chain
// @Accept       json
// @Produce      json
// @Param        request  body      model.OpenChainRequest  false  "Wallet"
// @Success      200      {object}  model.ChainRef
// @Failure      502      {object}  model.ErrorResponse
// @Router       /chain/open [post]
func (h *LineraHandler) OpenChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.OpenChainRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	ref, err := h.client.OpenChain(r.Context(), req.WalletID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.persist()
	writeJSON(w, http.StatusOK, ref)
}

// Deploy handles POST /deploy
// @Summary      Deploy an application
// @Description  Publishes the contract and service bytecode of a project and creates the application on the active chain
// @Tags         deploy
// @Accept       json
// @Produce      json
// @Param        request  body      model.DeployRequest  true  "Project"
// @Success      200      {object}  model.DeployResponse
// @Success      202      {object}  model.DeployResponse  "created but not confirmed"
// @Failure      400      {object}  model.ErrorResponse
// @Failure      502      {object}  model.ErrorResponse
// @Router       /deploy [post]
func (h *LineraHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var req model.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	desc, err := h.client.Deploy(r.Context(), req.Path, req.JSONArgument)
	h.persist()
	if err != nil {
		if errors.Is(err, model.ErrUncertain) {
			writeJSON(w, http.StatusAccepted, model.DeployResponse{Application: desc, Uncertain: true})
			return
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.DeployResponse{Application: desc})
}

// Resources handles GET /resources
// @Summary      Process resource usage
// @Tags         metrics
// @Produce      json
// @Success      200  {object}  model.ResourceSample
// @Router       /resources [get]
func (h *LineraHandler) Resources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	sample, err := h.client.CollectMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// persist writes the active wallet's chains back to the wallet directory.
func (h *LineraHandler) persist() {
	if h.walletDir == "" {
		return
	}
	wallet, err := h.client.Wallet()
	if err != nil {
		return
	}
	passwordBytes, err := config.GetWalletPasswordBytes()
	if err != nil {
		h.log.Warn("wallet not persisted", zap.Error(err))
		return
	}
	defer clear(passwordBytes)

	if err := linera.SaveWallet(h.walletDir, wallet, passwordBytes); err != nil {
		h.log.Warn("wallet not persisted", zap.Error(err))
	}
}

func (h *LineraHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, model.ErrMissingArtifact):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownWallet), errors.Is(err, linera.ErrNoWallet):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateWallet), errors.Is(err, model.ErrChainOwned):
		return http.StatusConflict
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrTransport):
		return http.StatusServiceUnavailable
	case model.IsNodeError(err), errors.Is(err, model.ErrPublish):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := model.ErrorResponse{Error: err.Error(), Phase: string(model.PhaseOf(err))}
	var nodeErr *model.NodeError
	if errors.As(err, &nodeErr) {
		code := nodeErr.Code
		resp.Code = "node_error"
		resp.NodeCode = &code
		resp.NodeMessage = nodeErr.Message
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
