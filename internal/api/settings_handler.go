package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"openchat/assistant/internal/interfaces"
)

// SettingsHandler serves endpoint accounts and chat preferences.
type SettingsHandler struct {
	service interfaces.SettingsService
}

func NewSettingsHandler(svc interfaces.SettingsService) *SettingsHandler {
	return &SettingsHandler{service: svc}
}

// GetAccounts godoc
// @Summary      List accounts
// @Tags         Accounts
// @Produce      json
// @Success      200  {array}  model.Account
// @Router       /api/v1/accounts [get]
func (h *SettingsHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Accounts(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, accounts)
}

func (h *SettingsHandler) HandleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	account, err := h.service.AddAccount(r.Context(), req.account())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, account)
}

func (h *SettingsHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	a := req.account()
	a.ID = chi.URLParam(r, "accountID")
	account, err := h.service.UpdateAccount(r.Context(), a)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, account)
}

func (h *SettingsHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAccount(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleSetCurrent makes the account the one used for new requests.
func (h *SettingsHandler) HandleSetCurrent(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SetCurrent(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleTestAccount godoc
// @Summary      Test an endpoint
// @Description  Sends a one-line completion with the given account. Nothing is saved.
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        account  body  AccountRequest  true  "Account"
// @Success      200  {object}  TestAccountResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /api/v1/accounts/test [post]
func (h *SettingsHandler) HandleTestAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TestAccountResponse{OK: h.service.TestAccount(r.Context(), req.account())})
}

func (h *SettingsHandler) HandleExportAccount(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ExportAccountResponse{Data: data})
}

func (h *SettingsHandler) HandleImportAccount(w http.ResponseWriter, r *http.Request) {
	var req ImportAccountRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	account, err := h.service.ImportAccount(r.Context(), req.Data)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, account)
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	limit, err := h.service.HistoryLimit(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SettingsResponse{HistoryLimit: limit})
}

func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := bindJSON(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.service.SetHistoryLimit(r.Context(), *req.HistoryLimit); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SettingsResponse{HistoryLimit: *req.HistoryLimit})
}
