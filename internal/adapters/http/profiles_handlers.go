package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (rt *Router) createProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	profile, err := rt.svc.Profiles.Create(r.Context(), actor, in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := rt.svc.Profiles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) updateProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	profile, err := rt.svc.Profiles.Update(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) deleteProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if err := rt.svc.Profiles.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type profileEvent func(ctx context.Context, actorID, id string) (*domain.Profile, error)

func (rt *Router) transitionProfile(w http.ResponseWriter, r *http.Request, event profileEvent) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	profile, err := event(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) openProfile(w http.ResponseWriter, r *http.Request) {
	rt.transitionProfile(w, r, rt.svc.Profiles.Open)
}

func (rt *Router) closeProfile(w http.ResponseWriter, r *http.Request) {
	rt.transitionProfile(w, r, rt.svc.Profiles.Close)
}

func (rt *Router) archiveProfile(w http.ResponseWriter, r *http.Request) {
	rt.transitionProfile(w, r, rt.svc.Profiles.Archive)
}

func (rt *Router) moveProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		ParentID *string `json:"parent_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	profile, err := rt.svc.Profiles.Move(r.Context(), actor, r.PathValue("id"), req.ParentID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) listProfiles(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := domain.ProfileFilter{
		EnterpriseID: q.Get("enterprise_id"),
		ParentID:     queryOptional(r, "parent_id"),
		Status:       domain.ProfileStatus(q.Get("status")),
		ProfileType:  q.Get("profile_type"),
	}
	if filter.RootsOnly, err = queryBool(r, "roots"); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if filter.TemplateOnly, err = queryBool(r, "templates"); err != nil {
		rt.writeError(w, r, err)
		return
	}

	out, err := rt.svc.Profiles.List(r.Context(), filter, page)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) listChildren(w http.ResponseWriter, r *http.Request) {
	children, err := rt.svc.Profiles.Children(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": children})
}

func (rt *Router) instantiateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.TemplateInstance
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	profile, err := rt.svc.Profiles.InstantiateTemplate(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}
