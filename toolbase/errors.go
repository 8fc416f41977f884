package toolbase

import "errors"

// Sentinel errors surfaced by validation and the execution path. Each maps
// to exactly one ErrorType via classify() in exec.go.
var (
	// ErrTargetPolicy indicates target failed the RFC1918/loopback/
	// .lab.internal authorization policy.
	ErrTargetPolicy = errors.New("toolbase: target is not authorized")

	// ErrArgsTooLong indicates extra_args exceeded the configured maximum.
	ErrArgsTooLong = errors.New("toolbase: extra_args exceeds maximum length")

	// ErrShellMetacharacter indicates extra_args contains a disallowed
	// shell metacharacter.
	ErrShellMetacharacter = errors.New("toolbase: extra_args contains a disallowed character")

	// ErrUnterminatedQuote indicates POSIX tokenization found an
	// unterminated quoted string.
	ErrUnterminatedQuote = errors.New("toolbase: extra_args has an unterminated quote")

	// ErrDisallowedToken indicates a tokenized argument did not match the
	// safe-token pattern and is not in the tool's extra_allowed_tokens set.
	ErrDisallowedToken = errors.New("toolbase: token is not allowed")

	// ErrDisallowedFlag indicates a flag token does not share a prefix
	// with any entry in the tool's allowed_flags set.
	ErrDisallowedFlag = errors.New("toolbase: flag is not allowed")

	// ErrSemanticValidation indicates a tool's per-tool semantic check
	// (port ranges, modes, thread counts, etc.) rejected the input.
	ErrSemanticValidation = errors.New("toolbase: semantic validation failed")

	// ErrCommandNotFound indicates the descriptor's command_name does not
	// resolve on PATH.
	ErrCommandNotFound = errors.New("toolbase: command not found on PATH")
)
