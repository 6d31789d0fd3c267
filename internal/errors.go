package internal

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/derWhity/bhajanbook/internal/repos"
)

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeIllegalPath is the error that is returned when the client did not send a valid path parameter
	ErrCodeIllegalPath = "ILLEGAL_PATH"
	// ErrCodeDirNotFound is returned when an import is requested for a directory that cannot be used
	ErrCodeDirNotFound = "DIR_NOT_FOUND"
	// ErrCodeImportRunning is returned when a new import is requested for a directory that is already inside the
	// import queue
	ErrCodeImportRunning = "IMPORT_ALREADY_QUEUED"
	// ErrCodeImportNotFound is returned when the status of an unknown import is requested
	ErrCodeImportNotFound = "IMPORT_NOT_FOUND"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeRequiredFieldMissing is returned when at least one required field has not been populated on an incoming
	// request
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeIllegalValue is returned when any field in the transferred data does not validate for some reason
	ErrCodeIllegalValue = "ILLEGAL_VALUE"
	// ErrCodeDuplicate is returned when an entity would collide with an existing one
	ErrCodeDuplicate = "DUPLICATE_ENTITY"
	// ErrCodePermissionDenied is returned when an entity may not be changed in the requested way
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	// ErrCodeInvalidPermutation is returned when a new playlist order does not contain every entry exactly once
	ErrCodeInvalidPermutation = "INVALID_PERMUTATION"
	// ErrCodeIndexOutOfRange is returned when an entry index does not point into the playlist
	ErrCodeIndexOutOfRange = "INDEX_OUT_OF_RANGE"
	// ErrCodeSongNotFound is returned when a referenced song does not exist
	ErrCodeSongNotFound = "SONG_NOT_FOUND"
	// ErrCodeGatheringNotFound is returned when an operation works on a gathering that does not exist
	ErrCodeGatheringNotFound = "GATHERING_NOT_FOUND"
	// ErrCodeSessionNotFound is returned when an operation works on a session that does not exist
	ErrCodeSessionNotFound = "SESSION_NOT_FOUND"
	// ErrCodeExtractionFailed is returned when no text could be read from an uploaded image
	ErrCodeExtractionFailed = "EXTRACTION_FAILED"
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}

// storageError converts a repository failure into an HTTPError. Unreachable stores are reported with 503 so that
// clients know they may fall back to offline data
func storageError(err error, message string) *HTTPError {
	status := http.StatusInternalServerError
	if repos.IsUnavailable(err) {
		status = http.StatusServiceUnavailable
	}
	return MakeErrorWithData(status, ErrCodeRepoError, message, err)
}

// notFoundOr returns a 404 error with the given code if err says the entity does not exist. Every other error is
// treated as a storage failure
func notFoundOr(err error, code string, what string) *HTTPError {
	if errors.Cause(err) == repos.ErrEntityNotExisting {
		return MakeError(http.StatusNotFound, code, fmt.Sprintf("%s does not exist", what))
	}
	return storageError(err, fmt.Sprintf("Error while retrieving %s", strings.ToLower(what[:1])+what[1:]))
}

// -- Validation -------------------------------------------------------------------------------------------------------

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report the JSON names of invalid fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validationError runs the struct validation and converts the first failure into an HTTPError
func validationError(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeIllegalValue, "Validation failed", err)
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			fmt.Sprintf("Field '%s' is required", fe.Field()),
			map[string]string{"field": fe.Field()},
		)
	}
	return MakeErrorWithData(
		http.StatusBadRequest,
		ErrCodeIllegalValue,
		fmt.Sprintf("Field '%s' has an illegal value", fe.Field()),
		map[string]interface{}{"field": fe.Field(), "value": fe.Value()},
	)
}
