package valuestore

import (
	"fmt"
	"strings"
)

// GameDirectory is the 3-bit inline tag identifying which virtual root a
// FilePath is relative to. The scheme strings are the ones recognized by
// the JSON front end (spec §4.5/§6).
const (
	DirConfig GameDirectory = iota
	DirContent
	DirLog
	DirSave
	DirTools
	DirVideo
)

var directorySchemes = [...]string{
	DirConfig:  "config",
	DirContent: "content",
	DirLog:     "log",
	DirSave:    "save",
	DirTools:   "tools",
	DirVideo:   "video",
}

// Scheme returns the URL scheme name for a directory tag (without "://").
func (d GameDirectory) Scheme() string {
	if int(d) < len(directorySchemes) {
		return directorySchemes[d]
	}

	return "unknown"
}

// LookupDirectoryScheme resolves a scheme name (as it appears before "://")
// to a GameDirectory tag. ok is false for unrecognized schemes.
func LookupDirectoryScheme(scheme string) (GameDirectory, bool) {
	for i, s := range directorySchemes {
		if s == scheme {
			return GameDirectory(i), true
		}
	}

	return 0, false
}

// FileKind values classify the 5-bit inline file-type tag of a FilePath.
// The many-to-one cook database types (Effect, ScriptProject, SoundProject,
// UIMovie, spec §4.8) and the texture family (spec §9, open question) are
// represented directly in this enumeration so pkg/cook can share it instead
// of re-deriving a parallel classification.
const (
	KindUnknown FileKind = iota
	KindImage
	KindText
	KindConfig
	KindScript
	KindAudio
	KindVideo
	KindMesh
	KindEffect
	KindScriptProject
	KindSoundProject
	KindUIMovie
	KindTextureDiffuse
	KindTextureNormal
	KindTextureSpecular
)

// IsTexture reports whether k is one of the texture-family variants that
// the cook database invalidates as a group (spec §4.8, §9).
func (k FileKind) IsTexture() bool {
	switch k {
	case KindTextureDiffuse, KindTextureNormal, KindTextureSpecular:
		return true
	default:
		return false
	}
}

// IsManyToOne reports whether cooked artifacts of this kind carry a sidecar
// metadata file (spec §4.8) rather than relying on bare modification times.
func (k FileKind) IsManyToOne() bool {
	switch k {
	case KindEffect, KindScriptProject, KindSoundProject, KindUIMovie:
		return true
	default:
		return false
	}
}

// extensionKinds maps a lower-cased file extension (without the leading
// dot) to the FileKind the JSON front end assigns it (spec §8 scenario 1:
// ".png" under content:// classifies as an image FilePath).
var extensionKinds = map[string]FileKind{
	"png":    KindImage,
	"jpg":    KindImage,
	"jpeg":   KindImage,
	"tga":    KindImage,
	"dds":    KindTextureDiffuse,
	"nrm":    KindTextureNormal,
	"spec":   KindTextureSpecular,
	"txt":    KindText,
	"json":   KindConfig,
	"cfg":    KindConfig,
	"lua":    KindScript,
	"script": KindScriptProject,
	"wav":    KindAudio,
	"ogg":    KindAudio,
	"sound":  KindSoundProject,
	"fx":     KindEffect,
	"movie":  KindUIMovie,
	"mp4":    KindVideo,
	"mesh":   KindMesh,
}

// ClassifyExtension returns the FileKind for a lower-cased extension
// (without the dot), or KindUnknown if the extension is not recognized.
func ClassifyExtension(ext string) FileKind {
	if k, ok := extensionKinds[strings.ToLower(ext)]; ok {
		return k
	}

	return KindUnknown
}

// URL reconstructs the "scheme://relative/name" serialization of a FilePath
// DataNode by resolving its symbol index through syms. Only meaningful when
// n.Type() == TypeFilePath.
func (n DataNode) URL(syms Symbols) (string, error) {
	dir, _, sym := n.FilePathParts()

	name, ok := syms.Lookup(sym)
	if !ok {
		return "", fmt.Errorf("valuestore: unresolved filepath symbol %d", sym)
	}

	return dir.Scheme() + "://" + name, nil
}

// ParseFilePathURL splits a "scheme://relative/name" string into its
// directory tag and relative-name portion. ok is false if the string does
// not start with a recognized scheme.
func ParseFilePathURL(s string) (dir GameDirectory, relName string, ok bool) {
	idx := strings.Index(s, "://")
	if idx < 0 {
		return 0, "", false
	}

	dir, ok = LookupDirectoryScheme(s[:idx])
	if !ok {
		return 0, "", false
	}

	return dir, s[idx+3:], true
}
