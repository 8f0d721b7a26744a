package model

// DeployRequest represents request for POST /deploy
type DeployRequest struct {
	Path         string `json:"path" binding:"required"`
	JSONArgument string `json:"jsonArgument,omitempty"`
}

// DeployResponse represents response for POST /deploy
type DeployResponse struct {
	Application ApplicationDescriptor `json:"application"`
	Uncertain   bool                  `json:"uncertain,omitempty"`
}
