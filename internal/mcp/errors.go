// Package mcp implements the Model Context Protocol (MCP) server for DocsMCP.
package mcp

import (
	"context"
	"errors"
	"fmt"

	docerrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// DocsMCP-specific JSON-RPC error codes, in the implementation-defined
// range.
const (
	ErrCodeIndexNotFound    = -32001 // index missing or unreadable
	ErrCodeDocumentNotFound = -32002 // document id not in the index
	ErrCodeTimeout          = -32003 // request timed out or was canceled
	ErrCodeFileNotFound     = -32004 // source file gone from disk
	ErrCodeFileTooLarge     = -32005 // file exceeds the size cap
	ErrCodeCrawlBusy        = -32006 // another crawl holds the index lock
)

// Standard JSON-RPC error codes.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors surfaced by handlers and translated onto protocol
// codes by MapError.
var (
	ErrIndexNotFound    = errors.New("index not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrCrawlBusy        = errors.New("crawl already in progress")
	ErrFileTooLarge     = errors.New("file too large")
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError is a JSON-RPC error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newError(code int, message string) *MCPError {
	return &MCPError{Code: code, Message: message}
}

// sentinelMappings pairs handler sentinels with their protocol code and
// client-facing message. Order sets precedence.
var sentinelMappings = []struct {
	sentinel error
	code     int
	message  string
}{
	{ErrIndexNotFound, ErrCodeIndexNotFound, "Index not found. Run 'docsmcp index' first."},
	{ErrDocumentNotFound, ErrCodeDocumentNotFound, "Document not found in the index."},
	{ErrCrawlBusy, ErrCodeCrawlBusy, "A crawl is already running. Try again once it finishes."},
	{context.DeadlineExceeded, ErrCodeTimeout, "Request timed out."},
	{context.Canceled, ErrCodeTimeout, "Request was canceled."},
	{ErrFileTooLarge, ErrCodeFileTooLarge, "File is too large to process."},
	{ErrToolNotFound, ErrCodeMethodNotFound, "Tool not found."},
	{ErrInvalidParams, ErrCodeInvalidParams, "Invalid parameters."},
	{ErrResourceNotFound, ErrCodeMethodNotFound, "Resource not found."},
}

// MapError translates an internal error into the MCPError sent to the
// client. Unrecognized errors flatten to an internal server error so
// nothing leaks implementation detail.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	// Already mapped: keep the code instead of flattening to internal.
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var docErr *docerrors.DocError
	if errors.As(err, &docErr) {
		return mapDocError(docErr)
	}

	for _, m := range sentinelMappings {
		if errors.Is(err, m.sentinel) {
			return newError(m.code, m.message)
		}
	}
	return newError(ErrCodeInternalError, "Internal server error.")
}

// NewInvalidParamsError builds a parameter error with a caller-supplied
// message.
func NewInvalidParamsError(msg string) *MCPError {
	return newError(ErrCodeInvalidParams, msg)
}

// NewMethodNotFoundError builds the error for an unknown tool name.
func NewMethodNotFoundError(name string) *MCPError {
	return newError(ErrCodeMethodNotFound, fmt.Sprintf("Tool '%s' not found.", name))
}

// NewDocumentNotFoundError builds the error for a document id missing
// from the index.
func NewDocumentNotFoundError(id string) *MCPError {
	return newError(ErrCodeDocumentNotFound,
		fmt.Sprintf("Document '%s' not found in the index. Use search or list to find valid ids.", id))
}

// NewResourceNotFoundError builds the error for an unknown resource URI.
func NewResourceNotFoundError(uri string) *MCPError {
	return newError(ErrCodeMethodNotFound, fmt.Sprintf("Resource '%s' not found.", uri))
}

// DocError codes specific enough to deserve their own protocol code.
var mcpCodeByDocCode = map[string]int{
	docerrors.ErrCodeFileNotFound: ErrCodeFileNotFound,
	docerrors.ErrCodeFileTooLarge: ErrCodeFileTooLarge,
	docerrors.ErrCodeAuthFailed:   ErrCodeInternalError, // not a timeout the caller would retry
	docerrors.ErrCodeDocNotFound:  ErrCodeDocumentNotFound,
	docerrors.ErrCodeCorruptIndex: ErrCodeIndexNotFound,
	docerrors.ErrCodeStoreOpen:    ErrCodeIndexNotFound,
	docerrors.ErrCodeCrawlBusy:    ErrCodeCrawlBusy,
}

// Fallback by subsystem when the exact code has no mapping of its own.
var mcpCodeByCategory = map[docerrors.Category]int{
	docerrors.CategoryNetwork:    ErrCodeTimeout,
	docerrors.CategoryValidation: ErrCodeInvalidParams,
}

// mapDocError picks the protocol code for a DocError and folds the
// suggestion into the message.
func mapDocError(de *docerrors.DocError) *MCPError {
	message := de.Message
	if de.Suggestion != "" {
		message = de.Message + " " + de.Suggestion
	}

	if code, ok := mcpCodeByDocCode[de.Code]; ok {
		return newError(code, message)
	}
	if code, ok := mcpCodeByCategory[de.Category]; ok {
		return newError(code, message)
	}
	return newError(ErrCodeInternalError, message)
}
