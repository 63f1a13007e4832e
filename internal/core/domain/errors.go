package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	ErrCodeParse                 ErrorCode = "parse_error"
	ErrCodeSerialize             ErrorCode = "serialize_error"
	ErrCodeNoMetadata            ErrorCode = "no_metadata"
	ErrCodeInvalidMetadata       ErrorCode = "invalid_metadata"
	ErrCodeInvalidMetadataSource ErrorCode = "invalid_metadata_source"
	ErrCodeSignatureValidation   ErrorCode = "signature_validation"
	ErrCodeSignatureComputation  ErrorCode = "signature_computation"
	ErrCodeDecryption            ErrorCode = "decryption"
	ErrCodeEncryption            ErrorCode = "encryption"
	ErrCodeAttributeNotFound     ErrorCode = "attribute_not_found"
	ErrCodeValidation            ErrorCode = "validation_error"
	ErrCodeConfiguration         ErrorCode = "configuration_error"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// SAMLStatus returns the SAML second-level status code a protocol boundary
// should use when translating this error into a failure response.
func (c ErrorCode) SAMLStatus() string {
	switch c {
	case ErrCodeParse, ErrCodeValidation, ErrCodeAttributeNotFound:
		return "urn:oasis:names:tc:SAML:2.0:status:RequestDenied"
	case ErrCodeSignatureValidation:
		return "urn:oasis:names:tc:SAML:2.0:status:RequestDenied"
	default:
		return "urn:oasis:names:tc:SAML:2.0:status:AuthnFailed"
	}
}

// AppError is a structured error with code, message, and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the ErrorCode from err, or empty string if err is not an
// AppError anywhere in its chain.
func CodeOf(err error) ErrorCode {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return ""
}

// Sentinel errors used with errors.Is across the trust core. AppError values
// wrap these so callers can match on either the code or the sentinel.
var (
	// ErrDescriptorNotFound means an identifier was never present in the
	// cache and could not be retrieved live.
	ErrDescriptorNotFound = errors.New("entity descriptor not found")

	// ErrDescriptorExpired means a descriptor was found but its validity
	// window has passed and no fresh copy could be obtained.
	ErrDescriptorExpired = errors.New("entity descriptor expired")

	// ErrUntrustedCertificate means the leaf certificate carried in a
	// message's key-info is not part of the configured trust anchor set.
	ErrUntrustedCertificate = errors.New("certificate not in trust anchor set")

	// ErrBadSignature means the cryptographic signature check itself failed
	// for a certificate that was otherwise trusted.
	ErrBadSignature = errors.New("signature verification failed")

	// ErrRequestedAttributesMissing means a request's extensions carried no
	// requested-attributes block.
	ErrRequestedAttributesMissing = errors.New("requested attributes element missing")
)

// ParseError creates a document parse error.
func ParseError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeParse, Message: message, Cause: cause}
}

// SerializeError creates a document serialization error.
func SerializeError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeSerialize, Message: message, Cause: cause}
}

// NoMetadataError creates an error for an identifier with no resolvable metadata.
func NoMetadataError(entityID string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeNoMetadata,
		Message: fmt.Sprintf("no metadata available for %q", entityID),
		Cause:   cause,
	}
}

// InvalidMetadataError creates an error for expired or unusable metadata.
func InvalidMetadataError(entityID string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidMetadata,
		Message: fmt.Sprintf("metadata for %q is no longer valid", entityID),
		Cause:   cause,
	}
}

// InvalidMetadataSourceError creates an error for a metadata URL rejected by
// the transport policy.
func InvalidMetadataSourceError(entityID string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidMetadataSource,
		Message: fmt.Sprintf("metadata source %q rejected by transport policy", entityID),
	}
}

// SignatureValidationError creates a signature validation error.
func SignatureValidationError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeSignatureValidation, Message: message, Cause: cause}
}

// SignatureComputationError creates a signature production error.
func SignatureComputationError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeSignatureComputation, Message: message, Cause: cause}
}

// DecryptionError creates an assertion decryption error.
func DecryptionError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeDecryption, Message: message, Cause: cause}
}

// EncryptionError creates an assertion encryption error.
func EncryptionError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeEncryption, Message: message, Cause: cause}
}

// AttributeNotFoundError creates an error for an attribute with no wire name.
func AttributeNotFoundError(name string) *AppError {
	return &AppError{
		Code:    ErrCodeAttributeNotFound,
		Message: fmt.Sprintf("attribute name %q was not found", name),
	}
}

// ValidationError creates a malformed-content error.
func ValidationError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Cause: cause}
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: message, Cause: cause}
}
