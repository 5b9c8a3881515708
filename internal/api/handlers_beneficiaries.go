package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

func (h *Handlers) ListBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	beneficiaries, err := h.service.ListBeneficiaries(r.Context(), account.ID)
	if err != nil {
		h.writeServiceError(w, "list beneficiaries", err)
		return
	}

	resp := make([]beneficiaryResponse, 0, len(beneficiaries))
	for i := range beneficiaries {
		resp = append(resp, newBeneficiaryResponse(&beneficiaries[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) CreateBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	var in domain.BeneficiaryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	beneficiary, err := h.service.CreateBeneficiary(r.Context(), account.ID, in)
	if err != nil {
		h.writeServiceError(w, "create beneficiary", err)
		return
	}
	writeJSON(w, http.StatusCreated, newBeneficiaryResponse(beneficiary))
}

func (h *Handlers) GetBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryIDParam(w, r)
	if !ok {
		return
	}

	beneficiary, err := h.service.GetBeneficiary(r.Context(), account.ID, beneficiaryID)
	if err != nil {
		h.writeServiceError(w, "get beneficiary", err)
		return
	}
	writeJSON(w, http.StatusOK, newBeneficiaryResponse(beneficiary))
}

func (h *Handlers) UpdateBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryIDParam(w, r)
	if !ok {
		return
	}

	var in domain.BeneficiaryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	beneficiary, err := h.service.UpdateBeneficiary(r.Context(), account.ID, beneficiaryID, in)
	if err != nil {
		h.writeServiceError(w, "update beneficiary", err)
		return
	}
	writeJSON(w, http.StatusOK, newBeneficiaryResponse(beneficiary))
}

func (h *Handlers) DeleteBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	beneficiaryID, ok := beneficiaryIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBeneficiary(r.Context(), account.ID, beneficiaryID); err != nil {
		h.writeServiceError(w, "delete beneficiary", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func beneficiaryIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid beneficiary ID")
		return uuid.Nil, false
	}
	return id, true
}
