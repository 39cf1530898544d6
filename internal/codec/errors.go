package codec

import "errors"

var (
	// ErrCorruptArchive indicates the byte stream is not a valid
	// archive of the expected format.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrPathEscape indicates an archive entry whose path would
	// resolve outside the extraction destination.
	ErrPathEscape = errors.New("archive entry escapes destination directory")
)
