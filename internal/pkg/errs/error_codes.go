/*
Package errs provides custom error types and application-level error code constants.

These codes identify specific business or system errors both inside the server and in
responses to portal clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrNotFound indicates that the requested page or record does not exist.
	ErrNotFound = 1008
)

// 2xxx: Content Business Logic Errors
const (
	// ErrArticleNotFound indicates that the news article does not exist.
	ErrArticleNotFound = 2101

	// ErrArticleSlugExists indicates that another article already uses the generated slug.
	ErrArticleSlugExists = 2102

	// ErrResultNotFound indicates that the exam result does not exist.
	ErrResultNotFound = 2201

	// ErrAdmissionNotFound indicates that the admission application does not exist.
	ErrAdmissionNotFound = 2301

	// ErrAdmissionStatusInvalid indicates an unknown admission status.
	ErrAdmissionStatusInvalid = 2302

	// ErrFileTypeInvalid indicates that an uploaded file is not an accepted image type.
	ErrFileTypeInvalid = 2401

	// ErrFileSizeTooLarge indicates that an uploaded file exceeds the size limit.
	ErrFileSizeTooLarge = 2402

	// ErrMediaDisabled indicates that media storage is not configured.
	ErrMediaDisabled = 2403
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the PoW proof provided by the client is invalid.
	ErrPowChallengeInvalid = 3002

	// ErrUnauthorized indicates that the request needs a signed-in portal session.
	ErrUnauthorized = 3003

	// ErrForbidden indicates that the signed-in user lacks a role for the page.
	ErrForbidden = 3004

	// ErrInvalidCredentials indicates that the auth service rejected the email or password.
	ErrInvalidCredentials = 3005

	// ErrSignUpFailed indicates that the auth service rejected the registration.
	ErrSignUpFailed = 3006

	// ErrSessionLoading indicates that the portal session has not settled yet.
	ErrSessionLoading = 3007

	// ErrAuthUnavailable indicates that the auth service did not answer in time.
	ErrAuthUnavailable = 3008
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates that the media storage call failed.
	ErrFileStorageFailed = 5001
)
