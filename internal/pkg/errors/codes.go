package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int
	Status  int
	Message string
}

// Error codes grouped by module
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer = 1000
	ErrInvalidParams  = 1001
	ErrNotFound       = 1002
	ErrUnauthorized   = 1003
	ErrForbidden      = 1004
	ErrConflict       = 1005

	// Upload session errors (2000-2999)
	ErrSessionNotFound     = 2000
	ErrSessionNotUploading = 2001
	ErrSessionEmpty        = 2002

	// Raw file errors (3000-3999)
	ErrFileNotFound     = 3000
	ErrFileTypeInvalid  = 3001
	ErrFileTooLarge     = 3002
	ErrFrameInvalid     = 3003

	// Stacking job errors (4000-4999)
	ErrJobNotFound   = 4000
	ErrJobNotClaimed = 4001

	// Storage errors (5000-5999)
	ErrStorageFailed = 5000
	ErrArchiveFailed = 5001

	// Account errors (6000-6999)
	ErrEmailTaken     = 6000
	ErrBadCredentials = 6001
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer: {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:  {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:       {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:   {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:      {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrConflict:       {ErrConflict, http.StatusConflict, "Resource conflict"},

	ErrSessionNotFound:     {ErrSessionNotFound, http.StatusNotFound, "Upload session not found"},
	ErrSessionNotUploading: {ErrSessionNotUploading, http.StatusConflict, "Session not accepting uploads"},
	ErrSessionEmpty:        {ErrSessionEmpty, http.StatusBadRequest, "No files in this session"},

	ErrFileNotFound:    {ErrFileNotFound, http.StatusNotFound, "File not found"},
	ErrFileTypeInvalid: {ErrFileTypeInvalid, http.StatusBadRequest, "Only .fit and .fits files are accepted"},
	ErrFileTooLarge:    {ErrFileTooLarge, http.StatusBadRequest, "File size exceeds limit"},
	ErrFrameInvalid:    {ErrFrameInvalid, http.StatusBadRequest, "Invalid FITS file"},

	ErrJobNotFound:   {ErrJobNotFound, http.StatusNotFound, "Stacking job not found"},
	ErrJobNotClaimed: {ErrJobNotClaimed, http.StatusConflict, "Job not in processing state"},

	ErrStorageFailed: {ErrStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrArchiveFailed: {ErrArchiveFailed, http.StatusInternalServerError, "Archive operation failed"},

	ErrEmailTaken:     {ErrEmailTaken, http.StatusConflict, "Email already registered"},
	ErrBadCredentials: {ErrBadCredentials, http.StatusUnauthorized, "Invalid email or password"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// FormatError formats an error message with optional details
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
