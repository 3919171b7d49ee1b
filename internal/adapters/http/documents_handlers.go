package httpadapter

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) addDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.DocumentInput
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	doc, err := rt.svc.Documents.Add(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) updateDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.DocumentInput
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	doc, err := rt.svc.Documents.Update(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) removeDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Documents.Remove(r.Context(), actor, r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type documentTarget struct {
	ProfileID string `json:"profile_id"`
}

func (rt *Router) moveDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req documentTarget
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	doc, err := rt.svc.Documents.Move(r.Context(), actor, r.PathValue("id"), req.ProfileID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// copyDocument duplicates into the same profile when profile_id is omitted.
func (rt *Router) copyDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req documentTarget
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	doc, err := rt.svc.Documents.Copy(r.Context(), actor, r.PathValue("id"), req.ProfileID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) reorderDocuments(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		Orders []domain.DisplayOrder `json:"orders"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Documents.Reorder(r.Context(), actor, r.PathValue("id"), req.Orders); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out, err := rt.svc.Documents.List(r.Context(), r.PathValue("id"), page)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) exportRegister(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")
	data, err := rt.svc.Documents.ExportRegister(r.Context(), profileID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(rt.opts.Service, len(data))
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "register-"+profileID+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
