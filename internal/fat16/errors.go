package fat16

import "errors"

// Sentinel errors surfaced by the volume API. Callers classify with errors.Is.
var (
	// ErrInvalidFormat means the device does not carry a usable FAT16
	// volume: bad boot signature, unsupported sector size or a FAT table
	// that does not start with the media-descriptor signature. Fatal for
	// the whole run.
	ErrInvalidFormat = errors.New("invalid FAT16 format")

	// ErrCorruptDirectory means a directory's slot table violates the
	// long-name chaining rules (sequencing, checksum or fragment count)
	// or an entry references an impossible cluster. The directory cannot
	// be decoded; there is no partial recovery.
	ErrCorruptDirectory = errors.New("corrupt directory")

	// ErrNotFound means a requested path component has no matching
	// directory entry. Only the requested path is affected.
	ErrNotFound = errors.New("path not found")

	// ErrTruncatedRead means the device returned fewer bytes than the
	// geometry derived from the boot record promises. Fatal.
	ErrTruncatedRead = errors.New("truncated read")
)
