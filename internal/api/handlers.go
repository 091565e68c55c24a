package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/EmanAguilera/FiamBond-sub000/internal/domain"
	"github.com/EmanAguilera/FiamBond-sub000/internal/models"
	"github.com/EmanAguilera/FiamBond-sub000/internal/service"
	"github.com/gorilla/mux"
)

func (h *Handler) CreateLoanHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	var req models.CreateLoanRequest
	attachment, ok := h.decodeRequest(w, r, &req, "attachment")
	if !ok {
		return
	}

	principal, err := models.ParseMoney(req.Principal)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "principal: "+err.Error())
		return
	}
	interest, err := models.ParseMoney(req.Interest)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "interest: "+err.Error())
		return
	}
	deadline, err := req.DeadlineTime()
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "deadline must be a YYYY-MM-DD date")
		return
	}
	if attachment.Body == nil {
		attachment.URL = req.AttachmentURL
	}

	loan, err := h.service.CreateLoan(r.Context(), service.CreateLoanInput{
		CreditorID:  actorID,
		Debtor:      req.Debtor(),
		FamilyID:    req.FamilyID,
		Principal:   principal,
		Interest:    interest,
		Description: req.Description,
		Deadline:    deadline,
		Attachment:  attachment,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/loans/%s", loan.ID))
	respondWithJSON(w, http.StatusCreated, models.NewLoanResponse(loan, h.now()))
}

func (h *Handler) GetLoanHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(r.Context(), mux.Vars(r)["id"], actorID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewLoanResponse(loan, h.now()))
}

func (h *Handler) ConfirmReceiptHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionConfirmReceipt)
}

func (h *Handler) SubmitRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.repayment(w, r, domain.ActionSubmitRepayment)
}

func (h *Handler) ConfirmRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionConfirmRepayment)
}

func (h *Handler) DeclineRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.ActionDeclineRepayment)
}

func (h *Handler) RecordRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.repayment(w, r, domain.ActionRecordRepayment)
}

// transition runs an action that takes no payload.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action domain.Action) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	h.propose(w, r, action, actorID, service.Payload{})
}

// repayment runs an action carrying an amount and an optional receipt.
func (h *Handler) repayment(w http.ResponseWriter, r *http.Request, action domain.Action) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}

	var req models.RepaymentRequest
	receipt, ok := h.decodeRequest(w, r, &req, "receipt")
	if !ok {
		return
	}
	amount, err := models.ParseMoney(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, "amount: "+err.Error())
		return
	}
	if receipt.Body == nil {
		receipt.URL = req.ReceiptURL
	}

	h.propose(w, r, action, actorID, service.Payload{Amount: amount, Proof: receipt})
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request, action domain.Action, actorID string, p service.Payload) {
	loan, err := h.service.Propose(r.Context(), mux.Vars(r)["id"], action, actorID, p)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewLoanResponse(loan, h.now()))
}

func (h *Handler) ListLoansHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.self(w, r)
	if !ok {
		return
	}

	var familyID *string
	if f := strings.TrimSpace(r.URL.Query().Get("family_id")); f != "" {
		familyID = &f
	}

	overview, err := h.service.ListLoansForUser(r.Context(), userID, familyID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	now := h.now()
	respondWithJSON(w, http.StatusOK, models.OverviewResponse{
		ActionRequired: models.NewLoanResponses(overview.ActionRequired, now),
		Lent:           models.NewLoanResponses(overview.Lent, now),
		Borrowed:       models.NewLoanResponses(overview.Borrowed, now),
		Repaid:         models.NewLoanResponses(overview.Repaid, now),
		Summary: models.SummaryResponse{
			Receivable: models.FormatMoney(overview.Summary.Receivable),
			Payable:    models.FormatMoney(overview.Summary.Payable),
			Overdue:    overview.Summary.Overdue,
		},
	})
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.self(w, r)
	if !ok {
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.NewTransactionResponses(txns))
}

// self allows users to read only their own collections.
func (h *Handler) self(w http.ResponseWriter, r *http.Request) (string, bool) {
	actorID, ok := actor(w, r)
	if !ok {
		return "", false
	}
	if userID := mux.Vars(r)["id"]; userID != actorID {
		respondWithError(w, http.StatusForbidden, "Cannot read another user's records")
		return "", false
	}
	return actorID, true
}
