// This file holds request decoding helpers shared by the handlers.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeError is a malformed request: bad JSON, oversized body, bad path
// or query parameter.
type decodeError struct {
	msg string
	err error
}

func (e *decodeError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// decodeJSON reads a single JSON value from the body into v. When the body
// is well-formed JSON but some members do not fit their fields, the result
// is a *core.ValidationError naming each of them.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &decodeError{msg: "request body too large", err: err}
		}
		return &decodeError{msg: "invalid JSON body", err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &decodeError{msg: "request body is empty", err: io.EOF}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		if fe := fieldErrors(body, v); fe != nil {
			return fe
		}
		return &decodeError{msg: "invalid JSON body", err: err}
	}
	if dec.More() {
		return &decodeError{msg: "invalid JSON body", err: errors.New("trailing data after JSON value")}
	}
	return nil
}

// fieldErrors decodes every member of a JSON object body into its own copy
// of the matching field of the struct v points at and reports the members
// that fail. It returns nil when body is not valid JSON, so syntax errors
// stay decode errors.
func fieldErrors(body []byte, v any) error {
	if !json.Valid(body) {
		return nil
	}
	rt := reflect.TypeOf(v)
	if rt.Kind() != reflect.Pointer || rt.Elem().Kind() != reflect.Struct {
		return nil
	}
	rt = rt.Elem()

	ve := core.NewValidationError()
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		ve.Add("body", "expected a JSON object")
		return ve
	}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if !f.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		raw, ok := members[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, reflect.New(f.Type).Interface()); err != nil {
			ve.Add(name, fieldMessage(err))
		}
	}
	if ve.Empty() {
		return nil
	}
	return ve
}

func fieldMessage(err error) string {
	var te *json.UnmarshalTypeError
	if !errors.As(err, &te) {
		return err.Error()
	}
	t := te.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Bool:
		return "must be a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be an integer"
	case reflect.Float32, reflect.Float64:
		return "must be a number"
	case reflect.Slice, reflect.Array:
		return "must be an array"
	case reflect.Struct, reflect.Map:
		return "must be an object"
	}
	return "has the wrong type"
}

// pathID parses the {id} wildcard of the route.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &decodeError{msg: "invalid id", err: fmt.Errorf("%q is not a positive integer", raw)}
	}
	return id, nil
}

// parseDateRange reads the optional start and end query parameters.
func parseDateRange(r *http.Request) (services.DateRange, error) {
	var out services.DateRange
	q := r.URL.Query()
	v := core.NewValidationError()
	if s := strings.TrimSpace(q.Get("start")); s != "" {
		d, err := core.ParseDate(s)
		v.Check("start", err)
		out.Start = d
	}
	if s := strings.TrimSpace(q.Get("end")); s != "" {
		d, err := core.ParseDate(s)
		v.Check("end", err)
		out.End = d
	}
	return out, v.OrNil()
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
