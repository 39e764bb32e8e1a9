package service

import "errors"

// Errors returned by the voting engine. The messages are the revert reasons
// existing clients match on.
var (
	ErrNotAuthorized        = errors.New("Ownable: caller is not the owner")
	ErrPhaseAlreadyTerminal = errors.New("Vote done")
	ErrWrongPhase           = errors.New("Reveal period done")
	ErrNotWhitelisted       = errors.New("Signature Validation Failed")
	ErrCommitMismatch       = errors.New("Wrong Vote & Salt")
	ErrResultsNotReady      = errors.New("Wait results period")

	// ErrNotAuthenticated rejects a request whose auth signature does not
	// belong to the identity it names.
	ErrNotAuthenticated = errors.New("Caller signature mismatch")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrPhaseAlreadyTerminal, "PhaseAlreadyTerminal"},
	{ErrWrongPhase, "WrongPhase"},
	{ErrNotWhitelisted, "NotWhitelisted"},
	{ErrCommitMismatch, "CommitMismatch"},
	{ErrResultsNotReady, "ResultsNotReady"},
	{ErrNotAuthenticated, "NotAuthenticated"},
}

// ErrorCode names the engine error wrapped by err, or "" when err is not one.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

// IsEngineError reports whether err is one of the protocol errors above, as
// opposed to an infrastructure failure.
func IsEngineError(err error) bool {
	return ErrorCode(err) != ""
}
