package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"openchat/assistant/internal/interfaces"
)

// PromptHandler serves prompt templates.
type PromptHandler struct {
	service interfaces.PromptService
}

func NewPromptHandler(svc interfaces.PromptService) *PromptHandler {
	return &PromptHandler{service: svc}
}

func (h *PromptHandler) GetPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.service.List(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, prompts)
}

// HandleCreatePrompt godoc
// @Summary      Create a prompt template
// @Tags         Prompts
// @Accept       json
// @Produce      json
// @Param        prompt  body  CreatePromptRequest  true  "Template"
// @Success      201  {object}  model.Prompt
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/prompts [post]
func (h *PromptHandler) HandleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req CreatePromptRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	prompt, err := h.service.Create(r.Context(), req.Title, req.Body)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, prompt)
}

// HandleDeletePrompt removes a user template; built-in templates answer 403.
func (h *PromptHandler) HandleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "promptID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
