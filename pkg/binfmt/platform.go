package binfmt

import (
	"runtime"
	"strings"
)

// Platform selects which directory separator a FilePath relative name is
// normalized to. Save normalizes to the target platform's separator so the
// file reads correctly wherever it is loaded next; Load normalizes to the
// current platform's separator so a FilePath's relative name round-trips
// with whatever the host OS expects from [valuestore.Symbols.Lookup] (spec
// §4.3, §4.4, §8 scenario 2).
type Platform uint8

const (
	PlatformPOSIX Platform = iota
	PlatformWindows
)

// CurrentPlatform reports the Platform value matching runtime.GOOS.
func CurrentPlatform() Platform {
	if runtime.GOOS == "windows" {
		return PlatformWindows
	}

	return PlatformPOSIX
}

func (p Platform) separator() byte {
	if p == PlatformWindows {
		return '\\'
	}

	return '/'
}

func (p Platform) alternate() byte {
	if p == PlatformWindows {
		return '/'
	}

	return '\\'
}

// normalizeSeparators rewrites every occurrence of p's alternate separator
// to p's native one. It is only ever applied to FilePath relative names,
// never to plain table keys, which may legitimately contain a literal
// backslash or forward slash with no directory meaning at all.
func normalizeSeparators(s string, p Platform) string {
	return strings.ReplaceAll(s, string(p.alternate()), string(p.separator()))
}
