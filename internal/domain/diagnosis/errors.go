package diagnosis

import "errors"

// Input errors: caught before any network call.
var (
	ErrInvalidMode        = errors.New("diagnosis: unknown input mode")
	ErrEmptyDescription   = errors.New("diagnosis: description is empty")
	ErrDescriptionTooLong = errors.New("diagnosis: description is too long")
	ErrImageRequired      = errors.New("diagnosis: image is required")
	ErrImageTooLarge      = errors.New("diagnosis: image exceeds size limit")
	ErrMissingMIMEType    = errors.New("diagnosis: MIME type is missing for image analysis")
	ErrUnsupportedImage   = errors.New("diagnosis: unsupported or corrupt image")
)

// Call errors: caught after the provider call.
var (
	ErrProviderFailed  = errors.New("diagnosis: provider call failed")
	ErrInvalidResponse = errors.New("diagnosis: the AI returned an invalid response")
)

// Message keys understood by the i18n tables.
const (
	MsgErrorDescription     = "errorDescription"
	MsgErrorDescriptionLong = "errorDescriptionLong"
	MsgErrorImage           = "errorImage"
	MsgErrorSize            = "errorSize"
	MsgErrorImageType       = "errorImageType"
	MsgErrorMode            = "errorMode"
	MsgErrorInvalidResponse = "errorInvalidResponse"
	MsgErrorProvider        = "errorProvider"
	MsgErrorUnknown         = "errorUnknown"
)

// IsInputError reports whether err is a failure of kind (a): bad user input.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidMode, ErrEmptyDescription, ErrDescriptionTooLong, ErrImageRequired,
		ErrImageTooLarge, ErrMissingMIMEType, ErrUnsupportedImage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessageKey maps an error to the localized message shown to the user.
func UserMessageKey(err error) string {
	switch {
	case errors.Is(err, ErrEmptyDescription):
		return MsgErrorDescription
	case errors.Is(err, ErrDescriptionTooLong):
		return MsgErrorDescriptionLong
	case errors.Is(err, ErrImageRequired), errors.Is(err, ErrMissingMIMEType):
		return MsgErrorImage
	case errors.Is(err, ErrImageTooLarge):
		return MsgErrorSize
	case errors.Is(err, ErrUnsupportedImage):
		return MsgErrorImageType
	case errors.Is(err, ErrInvalidMode):
		return MsgErrorMode
	case errors.Is(err, ErrInvalidResponse):
		return MsgErrorInvalidResponse
	case errors.Is(err, ErrProviderFailed):
		return MsgErrorProvider
	default:
		return MsgErrorUnknown
	}
}
