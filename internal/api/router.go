package api

import (
	"net/http"

	_ "github.com/AlexZinkM/linera-client/docs"
	"github.com/AlexZinkM/linera-client/internal/handler"
	"github.com/AlexZinkM/linera-client/internal/metrics"

	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRouter sets up router with handlers
func SetupRouter(h *handler.LineraHandler) http.Handler {
	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Prometheus
	mux.Handle("/metrics", metrics.Handler())

	// Wallet and chain endpoints
	mux.HandleFunc("/wallet/generate", h.Generate)
	mux.HandleFunc("/wallet/chains", h.Chains)
	mux.HandleFunc("/chain/open", h.OpenChain)

	// Deployment
	mux.HandleFunc("/deploy", h.Deploy)
	mux.HandleFunc("/resources", h.Resources)

	return mux
}
