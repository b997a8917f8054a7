package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// fieldError mirrors the validation error items FastAPI clients expect
type fieldError struct {
	Type string        `json:"type"`
	Loc  []interface{} `json:"loc"`
	Msg  string        `json:"msg"`
}

type validationError struct {
	Detail []fieldError `json:"detail"`
}

type errorDetail struct {
	Detail string `json:"detail"`
}

// decodeBody reads a JSON object body. Anything else is reported as a
// validation problem.
func decodeBody(r *http.Request) (map[string]json.RawMessage, []fieldError) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, []fieldError{{Type: "body_read_error", Loc: []interface{}{"body"}, Msg: err.Error()}}
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, []fieldError{{Type: "json_invalid", Loc: []interface{}{"body", 0}, Msg: "JSON decode error"}}
	}
	if body == nil {
		return nil, []fieldError{{Type: "model_attributes_type", Loc: []interface{}{"body"}, Msg: "Input should be a valid dictionary or object to extract fields from"}}
	}
	return body, nil
}

// requireString checks that field, when present, holds a string
func requireString(body map[string]json.RawMessage, field string, required bool) []fieldError {
	raw, ok := body[field]
	if !ok {
		if required {
			return []fieldError{{Type: "missing", Loc: []interface{}{"body", field}, Msg: "Field required"}}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return []fieldError{{Type: "string_type", Loc: []interface{}{"body", field}, Msg: "Input should be a valid string"}}
	}
	return nil
}

// decodeFields fills target from an already validated body
func decodeFields(body map[string]json.RawMessage, target interface{}) []fieldError {
	data, err := json.Marshal(body)
	if err != nil {
		return []fieldError{{Type: "json_invalid", Loc: []interface{}{"body"}, Msg: err.Error()}}
	}
	if err := json.Unmarshal(data, target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return []fieldError{{Type: typeErr.Type.Kind().String() + "_type", Loc: []interface{}{"body", typeErr.Field}, Msg: "Input should be a valid " + typeErr.Type.Kind().String()}}
		}
		return []fieldError{{Type: "json_invalid", Loc: []interface{}{"body"}, Msg: err.Error()}}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
