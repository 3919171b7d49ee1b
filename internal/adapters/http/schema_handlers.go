package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (rt *Router) createField(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.FieldInput
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	field, err := rt.svc.Schema.CreateField(r.Context(), actor, in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, field)
}

func (rt *Router) getField(w http.ResponseWriter, r *http.Request) {
	field, err := rt.svc.Schema.GetField(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (rt *Router) updateField(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.FieldInput
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	field, err := rt.svc.Schema.UpdateField(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (rt *Router) deleteField(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Schema.DeleteField(r.Context(), actor, r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listFields lists global fields unless profile_id is given.
func (rt *Router) listFields(w http.ResponseWriter, r *http.Request) {
	includeDisabled, err := queryBool(r, "include_disabled")
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	fields, err := rt.svc.Schema.ListFields(r.Context(), queryOptional(r, "profile_id"), includeDisabled)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": fields})
}

func (rt *Router) reorderFields(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		ProfileID *string               `json:"profile_id"`
		Orders    []domain.DisplayOrder `json:"orders"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Schema.ReorderFields(r.Context(), actor, req.ProfileID, req.Orders); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) copyFields(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		FromProfileID string `json:"from_profile_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	fields, err := rt.svc.Schema.CopyFields(r.Context(), actor, req.FromProfileID, r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"items": fields})
}

func (rt *Router) getValues(w http.ResponseWriter, r *http.Request) {
	values, err := rt.svc.Values.GetValues(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": values})
}

func (rt *Router) setValues(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		Values []domain.FieldValueInput `json:"values"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	values, err := rt.svc.Values.SetValues(r.Context(), actor, r.PathValue("id"), req.Values)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": values})
}

func (rt *Router) deleteValue(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Values.DeleteValue(r.Context(), actor, r.PathValue("id"), r.PathValue("field_id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
