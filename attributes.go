package eidasmirror

import (
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
)

// Re-export the attribute model.
type PersonalAttribute = domain.PersonalAttribute
type PersonalAttributeList = domain.PersonalAttributeList
type AttributeStatus = domain.AttributeStatus
type RequestPayload = domain.RequestPayload
type Format = domain.Format
type SPType = domain.SPType

const (
	StatusAvailable    = domain.StatusAvailable
	StatusNotAvailable = domain.StatusNotAvailable
	StatusWithheld     = domain.StatusWithheld

	FormatEidas = domain.FormatEidas
	FormatStork = domain.FormatStork

	SPTypePublic  = domain.SPTypePublic
	SPTypePrivate = domain.SPTypePrivate
)

// Re-export attribute helpers and derivations.
var (
	NewPersonalAttributeList = domain.NewPersonalAttributeList
	ShortName                = domain.ShortName
	IsLatinScript            = domain.IsLatinScript
	DeriveAgeOver            = domain.DeriveAgeOver
	DeriveCrossBorderID      = domain.DeriveCrossBorderID
)
