package cook

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/vnstone/datastore/pkg/valuestore"
)

// allFileTypes enumerates every [valuestore.FileKind] in declaration order,
// the order spec §6 requires for the cooker-versions file
// ("content://version_data.dat ... count x (data_version, cooker_version)
// in FileType enumeration order").
var allFileTypes = []FileType{
	valuestore.KindUnknown,
	valuestore.KindImage,
	valuestore.KindText,
	valuestore.KindConfig,
	valuestore.KindScript,
	valuestore.KindAudio,
	valuestore.KindVideo,
	valuestore.KindMesh,
	valuestore.KindEffect,
	valuestore.KindScriptProject,
	valuestore.KindSoundProject,
	valuestore.KindUIMovie,
	valuestore.KindTextureDiffuse,
	valuestore.KindTextureNormal,
	valuestore.KindTextureSpecular,
}

// versionsFileName is the on-disk name under Options.BaseDir standing in
// for spec §6's "content://version_data.dat" (virtual-filesystem path
// resolution is out of scope per spec §1; callers that do have a virtual
// content:// root pass its resolved directory as Options.BaseDir).
const versionsFileName = "version_data.dat"

func versionsPath(baseDir string) string {
	return filepath.Join(baseDir, versionsFileName)
}

// loadVersions reads the cooker-versions file, returning an empty map (not
// an error) if it does not exist yet. Open then writes the current versions
// without deleting any cooked file.
func loadVersions(baseDir string) (map[FileType]VersionRecord, error) {
	data, err := os.ReadFile(versionsPath(baseDir))
	if err != nil {
		if os.IsNotExist(err) {
			return map[FileType]VersionRecord{}, nil
		}

		return nil, err
	}

	return decodeVersions(data)
}

func decodeVersions(data []byte) (map[FileType]VersionRecord, error) {
	r := bytes.NewReader(data)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("cook: versions file: %w", err)
	}

	if int(count) > len(allFileTypes) {
		return nil, fmt.Errorf("cook: versions file: count %d exceeds known file types", count)
	}

	out := make(map[FileType]VersionRecord, count)

	for i := uint32(0); i < count; i++ {
		var rec struct{ DataVersion, CookerVersion uint32 }

		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("cook: versions file: entry %d: %w", i, err)
		}

		out[allFileTypes[i]] = VersionRecord{DataVersion: rec.DataVersion, CookerVersion: rec.CookerVersion}
	}

	return out, nil
}

// saveVersions writes the cooker-versions file atomically (spec §4.8: "on a
// mismatch the database ... rewrites the versions file").
func saveVersions(baseDir string, versions map[FileType]VersionRecord) error {
	var buf bytes.Buffer

	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(allFileTypes)))

	for _, ft := range allFileTypes {
		rec := versions[ft]
		_ = binary.Write(&buf, binary.LittleEndian, rec.DataVersion)
		_ = binary.Write(&buf, binary.LittleEndian, rec.CookerVersion)
	}

	return atomic.WriteFile(versionsPath(baseDir), bytes.NewReader(buf.Bytes()))
}

// diffVersions reports which file types in want differ from stored (or are
// altogether absent from it), per spec §4.8's "on a mismatch" trigger.
func diffVersions(stored, want map[FileType]VersionRecord) []FileType {
	var mismatched []FileType

	for ft, rec := range want {
		if stored[ft] != rec {
			mismatched = append(mismatched, ft)
		}
	}

	return mismatched
}
