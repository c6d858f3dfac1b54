// Package persist implements the on-disk layout a data directory uses:
// a 10-digit Unix-timestamp directory name holding a data_version.silo
// marker, a schema.yaml describing the TableSchema, and one file per
// partition per column under table/partition_<n>/.
package persist

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// SerializationVersion is bumped whenever the on-disk column encoding
// changes incompatibly. A directory whose data_version.silo carries a
// different value is skipped rather than loaded.
const SerializationVersion uint32 = 1

// DataVersion identifies one on-disk snapshot by the Unix timestamp its
// directory is named after.
type DataVersion struct {
	Timestamp            int64
	SerializationVersion uint32
}

// NewDataVersion stamps a fresh snapshot with the current time.
func NewDataVersion(now time.Time) DataVersion {
	return DataVersion{Timestamp: now.Unix(), SerializationVersion: SerializationVersion}
}

// DirName is the 10-digit directory name this version is stored under.
func (v DataVersion) DirName() string {
	return fmt.Sprintf("%010d", v.Timestamp)
}

const versionFileName = "data_version.silo"

// WriteDataVersion serializes v to <dir>/data_version.silo.
func WriteDataVersion(dir string, v DataVersion) error {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[0:8], uint64(v.Timestamp))
	binary.BigEndian.PutUint32(buf[8:12], v.SerializationVersion)
	return os.WriteFile(filepath.Join(dir, versionFileName), buf, 0o644)
}

// ReadDataVersion deserializes <dir>/data_version.silo.
func ReadDataVersion(dir string) (DataVersion, error) {
	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	if err != nil {
		return DataVersion{}, err
	}
	if len(data) != 12 {
		return DataVersion{}, fmt.Errorf("data_version.silo: expected 12 bytes, got %d", len(data))
	}
	return DataVersion{
		Timestamp:            int64(binary.BigEndian.Uint64(data[0:8])),
		SerializationVersion: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

var dirNamePattern = regexp.MustCompile(`^\d{10}$`)

// ValidateDirectory reports whether dir is a well-formed, compatible
// data-version directory: its name is a 10-digit timestamp, it carries
// a data_version.silo, that file's timestamp matches the directory
// name, and its serialization version matches SerializationVersion.
// A directory failing any of these checks is ignored, not an error.
func ValidateDirectory(dir string) (DataVersion, bool) {
	name := filepath.Base(dir)
	if !dirNamePattern.MatchString(name) {
		return DataVersion{}, false
	}
	wantTimestamp, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return DataVersion{}, false
	}
	v, err := ReadDataVersion(dir)
	if err != nil {
		return DataVersion{}, false
	}
	if v.Timestamp != wantTimestamp || v.SerializationVersion != SerializationVersion {
		return DataVersion{}, false
	}
	return v, true
}

// NewestCompatible scans root for data-version subdirectories and
// returns the newest one that ValidateDirectory accepts.
func NewestCompatible(root string) (DataVersion, string, bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return DataVersion{}, "", false
	}
	var best DataVersion
	var bestDir string
	found := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		v, ok := ValidateDirectory(dir)
		if !ok {
			continue
		}
		if !found || v.Timestamp > best.Timestamp {
			best, bestDir, found = v, dir, true
		}
	}
	return best, bestDir, found
}
