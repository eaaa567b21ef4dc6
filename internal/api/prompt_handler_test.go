package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"openchat/assistant/internal/api"
	app_errors "openchat/assistant/internal/errors"
	"openchat/assistant/internal/interfaces/mocks"
	"openchat/assistant/internal/model"
)

func setupPromptHandler(t *testing.T) (*api.PromptHandler, *mocks.MockPromptService) {
	mockSvc := mocks.NewMockPromptService(t)
	return api.NewPromptHandler(mockSvc), mockSvc
}

func TestPromptHandler(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		handler, mockSvc := setupPromptHandler(t)
		mockSvc.On("List", mock.Anything).Return(model.BuiltinPrompts(), nil).Once()

		rr := httptest.NewRecorder()
		handler.GetPrompts(rr, httptest.NewRequest(http.MethodGet, "/api/v1/prompts", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Code Assistant")
	})

	t.Run("Create", func(t *testing.T) {
		handler, mockSvc := setupPromptHandler(t)
		mockSvc.On("Create", mock.Anything, "Haiku", "Answer in a haiku.").
			Return(&model.Prompt{ID: "p1", Title: "Haiku", Body: "Answer in a haiku."}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/prompts", strings.NewReader(`{"title":"Haiku","body":"Answer in a haiku."}`))
		rr := httptest.NewRecorder()
		handler.HandleCreatePrompt(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("Create without body", func(t *testing.T) {
		handler, _ := setupPromptHandler(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/prompts", strings.NewReader(`{"title":"Haiku"}`))
		rr := httptest.NewRecorder()
		handler.HandleCreatePrompt(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Field 'Body' failed on the 'required' tag")
	})

	t.Run("Delete built-in", func(t *testing.T) {
		handler, mockSvc := setupPromptHandler(t)
		mockSvc.On("Delete", mock.Anything, model.PromptCodeID).Return(app_errors.ErrPermission).Once()

		req := addChiURLParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"promptID": model.PromptCodeID})
		rr := httptest.NewRecorder()
		handler.HandleDeletePrompt(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
