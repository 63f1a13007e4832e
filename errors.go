package eidasmirror

import (
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// Re-export error types from the domain package.
type ErrorCode = domain.ErrorCode
type AppError = domain.AppError

// Re-export error code constants.
const (
	ErrCodeParse                 = domain.ErrCodeParse
	ErrCodeSerialize             = domain.ErrCodeSerialize
	ErrCodeNoMetadata            = domain.ErrCodeNoMetadata
	ErrCodeInvalidMetadata       = domain.ErrCodeInvalidMetadata
	ErrCodeInvalidMetadataSource = domain.ErrCodeInvalidMetadataSource
	ErrCodeSignatureValidation   = domain.ErrCodeSignatureValidation
	ErrCodeSignatureComputation  = domain.ErrCodeSignatureComputation
	ErrCodeDecryption            = domain.ErrCodeDecryption
	ErrCodeEncryption            = domain.ErrCodeEncryption
	ErrCodeAttributeNotFound     = domain.ErrCodeAttributeNotFound
	ErrCodeValidation            = domain.ErrCodeValidation
	ErrCodeConfiguration         = domain.ErrCodeConfiguration
)

// Re-export sentinel errors.
var (
	ErrDescriptorNotFound   = domain.ErrDescriptorNotFound
	ErrDescriptorExpired    = domain.ErrDescriptorExpired
	ErrUntrustedCertificate = domain.ErrUntrustedCertificate
	ErrBadSignature         = domain.ErrBadSignature
)

// Re-export error helpers.
var (
	CodeOf      = domain.CodeOf
	ConfigError = domain.ConfigError
)
