package httpadapter

import (
	"net/http"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (rt *Router) requestApproval(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	approval, err := rt.svc.Approvals.Request(r.Context(), actor, r.PathValue("id"), req.Notes)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, approval)
}

func (rt *Router) listApprovals(w http.ResponseWriter, r *http.Request) {
	approvals, err := rt.svc.Approvals.ListByDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": approvals})
}

func (rt *Router) getApproval(w http.ResponseWriter, r *http.Request) {
	approval, err := rt.svc.Approvals.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (rt *Router) approveApproval(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	approval, err := rt.svc.Approvals.Approve(r.Context(), actor, r.PathValue("id"), req.Notes)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (rt *Router) rejectApproval(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	approval, err := rt.svc.Approvals.Reject(r.Context(), actor, r.PathValue("id"), req.Reason)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (rt *Router) requestLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.LoanRequest
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	loan, err := rt.svc.Loans.Request(r.Context(), actor, in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (rt *Router) getLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := rt.svc.Loans.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (rt *Router) listLoans(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := domain.LoanFilter{
		EnterpriseID: q.Get("enterprise_id"),
		BorrowerID:   q.Get("borrower_id"),
		Status:       domain.LoanStatus(q.Get("status")),
	}
	out, err := rt.svc.Loans.List(r.Context(), filter, page)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) overdueLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := rt.svc.Loans.Overdue(r.Context(), r.URL.Query().Get("enterprise_id"), time.Time{})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": loans})
}

func (rt *Router) approveLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	loan, err := rt.svc.Loans.Approve(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (rt *Router) rejectLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	loan, err := rt.svc.Loans.Reject(r.Context(), actor, r.PathValue("id"), req.Reason)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (rt *Router) borrowLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	loan, err := rt.svc.Loans.MarkBorrowed(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// returnLoan returns every outstanding item when item_ids is empty.
func (rt *Router) returnLoan(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	loan, err := rt.svc.Loans.Return(r.Context(), actor, r.PathValue("id"), req.ItemIDs)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}
