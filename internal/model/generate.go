package model

// GenerateResponse represents response for POST /wallet/generate
type GenerateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

// ChainsResponse represents response for GET /wallet/chains
type ChainsResponse struct {
	WalletID string     `json:"walletId"`
	Owner    string     `json:"owner"`
	Chains   []ChainRef `json:"chains"`
}

// OpenChainRequest represents request for POST /chain/open
type OpenChainRequest struct {
	WalletID string `json:"walletId"`
}
