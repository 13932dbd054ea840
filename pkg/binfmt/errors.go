package binfmt

import "errors"

var (
	ErrBadMagic           = errors.New("binfmt: bad magic")
	ErrBadChecksum        = errors.New("binfmt: header checksum mismatch")
	ErrTruncated          = errors.New("binfmt: truncated file")
	ErrUnsupportedVersion = errors.New("binfmt: unsupported format version")
	ErrCorruptSymbolTable   = errors.New("binfmt: corrupt symbol table")
	ErrCorruptFilePathTable = errors.New("binfmt: corrupt file path table")
	ErrCorruptHandleTable   = errors.New("binfmt: corrupt handle table")
)
