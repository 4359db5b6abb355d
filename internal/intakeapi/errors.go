package intakeapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/linnemanlabs/intake/internal/triage"
)

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// errInvalidPayload marks a body that is not the JSON we expect.
var errInvalidPayload = errors.New("invalid payload")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads one JSON value from the body. Type errors on integer fields and
// malformed condition values come back as *triage.ValidationError so they render
// like any other rejected field; everything else is errInvalidPayload.
func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return errInvalidPayload
	}

	err = json.NewDecoder(bytes.NewReader(data)).Decode(v)
	if err == nil {
		return nil
	}

	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && strings.HasSuffix(te.Field, "priority") {
		return &triage.ValidationError{Errors: []triage.FieldError{{
			Field:   locateField(data, te.Field, isInteger),
			Message: "Priority must be a positive integer",
		}}}
	}
	if errors.Is(err, triage.ErrConditionValue) {
		field := "conditions.value"
		if path, ok := findField(data, "rules.conditions.value", isConditionValue); ok {
			field = path
		} else if path, ok := findField(data, field, isConditionValue); ok {
			field = path
		}
		return &triage.ValidationError{Errors: []triage.FieldError{{
			Field:   field,
			Message: "Value must be a string or an array of strings",
		}}}
	}
	return errInvalidPayload
}

// locateField is findField falling back to the unindexed dotted path.
func locateField(data []byte, dotted string, ok func(any) bool) string {
	if path, found := findField(data, dotted, ok); found {
		return path
	}
	return dotted
}

// findField walks the JSON document along a dotted path, descending into every array
// element, and returns the indexed path ("rules[2].priority") of the first value that
// fails ok.
func findField(data []byte, dotted string, ok func(any) bool) (string, bool) {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return "", false
	}
	path, found := walk(tree, strings.Split(dotted, "."), ok)
	return strings.TrimPrefix(path, "."), found
}

func walk(node any, segs []string, ok func(any) bool) (string, bool) {
	if len(segs) == 0 {
		return "", !ok(node)
	}
	if list, isList := node.([]any); isList {
		for i, elem := range list {
			if path, found := walk(elem, segs, ok); found {
				return "[" + strconv.Itoa(i) + "]" + path, true
			}
		}
		return "", false
	}
	obj, isObj := node.(map[string]any)
	if !isObj {
		return "", false
	}
	child, present := obj[segs[0]]
	if !present {
		return "", false
	}
	path, found := walk(child, segs[1:], ok)
	if !found {
		return "", false
	}
	return "." + segs[0] + path, true
}

func isInteger(v any) bool {
	f, ok := v.(float64)
	return ok && f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

func isConditionValue(v any) bool {
	switch t := v.(type) {
	case string:
		return true
	case []any:
		for _, e := range t {
			if _, ok := e.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}

// writeError maps an error from any layer onto a status code and JSON body.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var ve *triage.ValidationError
	if errors.As(err, &ve) {
		a.logger.Warn(ctx, "validation error",
			"path", r.URL.Path,
			"method", r.Method,
			"errors", ve.Errors,
		)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Validation failed", Details: ve.Errors})
		return
	}

	if errors.Is(err, errInvalidPayload) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload"})
		return
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		return
	}

	var se *triage.Error
	if errors.As(err, &se) {
		status := http.StatusInternalServerError
		if se.Kind == triage.KindNotFound {
			status = http.StatusNotFound
		}
		a.logger.Warn(ctx, "operational error",
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
			"message", se.Msg,
		)
		writeJSON(w, status, errorBody{Error: se.Msg})
		return
	}

	a.logger.Error(ctx, err, "unexpected error", "path", r.URL.Path, "method", r.Method)
	body := errorBody{Error: "Internal server error"}
	if a.devMode {
		body.Details = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
