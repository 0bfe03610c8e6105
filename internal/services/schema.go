package services

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/desertthunder/pulse/internal/shared"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks v against its `validate` struct tags.
//
// Structs are checked directly and slices element by element; other kinds always pass.
func Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		return validate.Struct(rv.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := Validate(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	}
	return nil
}

// decodeResponse unmarshals payload into out and validates it.
//
// Any mismatch is a [shared.ValidationError] carrying the endpoint and raw payload.
func decodeResponse(endpoint string, payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return &shared.ValidationError{Endpoint: endpoint, Payload: payload, Err: err}
	}
	if err := Validate(out); err != nil {
		return &shared.ValidationError{Endpoint: endpoint, Payload: payload, Err: err}
	}
	return nil
}
