// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"errors"
	"fmt"
	"strings"

	jsonserialization "github.com/microsoft/kiota-serialization-json-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
)

// APIError is a non-2xx response from the directory API.
// Code and Message come from the OData error envelope when the body carries one.
type APIError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s failed: HTTP %d - %s: %s", e.Operation, e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s failed: HTTP %d - %s", e.Operation, e.StatusCode, e.Code)
	case e.Body != "":
		return fmt.Sprintf("%s failed: HTTP %d - %s", e.Operation, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s failed: HTTP %d", e.Operation, e.StatusCode)
	}
}

func newAPIError(operation string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Operation:  operation,
		StatusCode: status,
		Body:       strings.TrimSpace(string(body)),
	}
	apiErr.Code, apiErr.Message = decodeODataError(body)
	return apiErr
}

// decodeODataError extracts error.code and error.message from an OData error body.
func decodeODataError(body []byte) (code, message string) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", ""
	}
	node, err := jsonserialization.NewJsonParseNode(body)
	if err != nil {
		return "", ""
	}
	parsed, err := node.GetObjectValue(odataerrors.CreateODataErrorFromDiscriminatorValue)
	if err != nil || parsed == nil {
		return "", ""
	}
	odataErr, ok := parsed.(odataerrors.ODataErrorable)
	if !ok {
		return "", ""
	}
	return mainErrorFields(odataErr.GetErrorEscaped())
}

func mainErrorFields(main odataerrors.MainErrorable) (code, message string) {
	if main == nil {
		return "", ""
	}
	if c := main.GetCode(); c != nil {
		code = *c
	}
	if m := main.GetMessage(); m != nil {
		message = *m
	}
	return code, message
}

// fromSDKError converts an SDK call error into an *APIError when it carries an OData error.
func fromSDKError(operation string, err error) error {
	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	apiErr := &APIError{
		Operation:  operation,
		StatusCode: odataErr.ResponseStatusCode,
	}
	apiErr.Code, apiErr.Message = mainErrorFields(odataErr.GetErrorEscaped())
	return apiErr
}
