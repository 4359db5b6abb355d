package intakeapi

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/intake/internal/triage"
)

func (a *API) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.svc.GetConfig(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var in triage.Config
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}

	cfg, err := a.svc.SaveConfig(r.Context(), &in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var rule triage.Rule
	if err := decode(r, &rule); err != nil {
		a.writeError(w, r, err)
		return
	}

	cfg, err := a.svc.AddRule(r.Context(), rule)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("intake.rule.id", id))

	var rule triage.Rule
	if err := decode(r, &rule); err != nil {
		a.writeError(w, r, err)
		return
	}

	cfg, err := a.svc.UpdateRule(r.Context(), id, rule)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("intake.rule.id", id))

	cfg, err := a.svc.DeleteRule(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handlePrompt returns the exact system prompt the chat endpoint would send.
func (a *API) handlePrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := a.svc.BuildSystemPrompt(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(prompt))
}

type resolveRequest struct {
	RequestType string            `json:"requestType"`
	Facts       map[string]string `json:"facts"`
}

type resolveResponse struct {
	Matched bool         `json:"matched"`
	Rule    *triage.Rule `json:"rule,omitempty"`
}

// handleResolve is a dry run of the rule set against known facts.
func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	var in resolveRequest
	if err := decode(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.RequestType) == "" {
		a.writeError(w, r, &triage.ValidationError{Errors: []triage.FieldError{{
			Field:   "requestType",
			Message: "Request type is required",
		}}})
		return
	}

	rule, ok, err := a.svc.Resolve(r.Context(), in.RequestType, in.Facts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Bool("intake.resolve.matched", ok))
	if ok {
		span.SetAttributes(attribute.String("intake.rule.id", rule.ID))
	}

	writeJSON(w, http.StatusOK, resolveResponse{Matched: ok, Rule: rule})
}
