// Package archive serves the archive.* JSON-RPC methods.
package archive

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ParamsError reports unusable method parameters
type ParamsError struct {
	Reason string
}

func (e *ParamsError) Error() string {
	return "invalid parameters: " + e.Reason
}

// RPCCode maps the error to JSON-RPC's invalid params code
func (e *ParamsError) RPCCode() int {
	return -32602
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// decode fills dst from an object of named params and validates it
func decode(params json.RawMessage, dst interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		params = []byte("{}")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return &ParamsError{Reason: "expected an object of named parameters"}
	}

	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(dst); err != nil {
		return &ParamsError{Reason: fmt.Sprintf("%v", err)}
	}
	return nil
}
