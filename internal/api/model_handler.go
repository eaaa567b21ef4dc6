package api

import (
	"net/http"

	"openchat/assistant/internal/interfaces"
)

// ModelHandler handles HTTP requests for model discovery.
type ModelHandler struct {
	service interfaces.ModelService
}

func NewModelHandler(svc interfaces.ModelService) *ModelHandler {
	return &ModelHandler{service: svc}
}

// HandleListModels godoc
// @Summary      List models
// @Description  Lists the models offered by the current account's endpoint.
// @Tags         Models
// @Produce      json
// @Success      200  {array}   string
// @Failure      412  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/v1/models [get]
func (h *ModelHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models)
}
