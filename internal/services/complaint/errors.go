package complaint

import "errors"

var (
	// ErrForbidden is returned when the acting user's role does not allow the operation
	ErrForbidden = errors.New("user does not have enough privileges")
	// ErrMissingIBAN is returned when a complainer has no bank account to reimburse
	ErrMissingIBAN = errors.New("complainer has no IBAN on file")
	// ErrUnsupportedPhoto is returned for photos that are not JPEG or PNG
	ErrUnsupportedPhoto = errors.New("photo must be a jpeg or png image")
	// ErrInvalidComplaint is returned for a missing title or an invalid amount
	ErrInvalidComplaint = errors.New("invalid complaint")
	// ErrUploadFailed is returned when the photo could not be stored
	ErrUploadFailed = errors.New("failed to upload complaint photo")
	// ErrAlreadyApproved is returned when the transfer of a complaint was already funded
	ErrAlreadyApproved = errors.New("transaction already approved")
	// ErrAlreadyCancelled is returned when the transfer of a complaint was already cancelled
	ErrAlreadyCancelled = errors.New("transaction already cancelled")
	// ErrInvalidTransition is returned when a reviewed complaint is reviewed the other way
	ErrInvalidTransition = errors.New("complaint has already been reviewed")
	// ErrTransactionMissing is returned when a complaint has no transaction to fund or cancel
	ErrTransactionMissing = errors.New("complaint has no transaction")
	// ErrGatewayUnavailable is returned when the payment gateway fails or times out
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
