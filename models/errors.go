package models

import "errors"

var (
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrInvalidManifest     = errors.New("invalid manifest")
	ErrUnsafePath          = errors.New("path escapes instance directory")
	ErrUnknownModLoader    = errors.New("unknown mod loader")
	ErrUnexpectedNode      = errors.New("unexpected html node")
	ErrRequiredFileMissing = errors.New("required file missing")
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrVersionNotFound     = errors.New("version not found")
	ErrVersionNotInstalled = errors.New("version not installed")
)
