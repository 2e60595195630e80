// Persisted-state manifest: a small fixed-header file recording which
// computation stages have completed, the ReferenceList watermarks and
// the run's Config, so Open can skip straight to querying without
// redoing BFS/dominator/retained-size work.
//
// Grounded on the teacher's Header (header.go: fixed-offset binary
// fields, magic + version, little-endian) and compress.go's zstd
// encoder/decoder pair, generalized from "inline history snapshot" to
// "a config blob attached to the manifest".
package reachability

import (
	"encoding/binary"
	"os"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

const (
	manifestMagic   = "HWRM"
	manifestVersion = uint16(1)
)

var (
	manifestEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	manifestDecoder, _ = zstd.NewReader(nil)
)

// Manifest records the progress and shape of one analysis run.
// Analysis.Close writes one on every close, whatever its flags; Open
// resumes from it only when GCRootsComputed, DominatorsComputed and
// RetainedSizesComputed are all true. NearestRootEngine's
// multiple-parents and leaves streams are never persisted, so a
// partially completed run cannot be resumed mid-way — there is nothing
// to feed DominatorEngine a second time. RefListMapped
// and RefListNext are the watermarks OpenReferenceList needs to
// rehydrate the list without replaying every append.
type Manifest struct {
	ObjectCount           int64
	PointerWidth          PointerWidth
	GCRootsComputed       bool
	DominatorsComputed    bool
	RetainedSizesComputed bool
	RefListMapped         int32
	RefListNext           int32
	Config                Config // JSON-encoded, then zstd-compressed, on disk
}

// SaveManifest writes m to path as a fixed header followed by the
// compressed config blob, overwriting any existing file. fsync only
// runs when syncWrites is set.
func SaveManifest(path string, m Manifest, syncWrites bool) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{"SaveManifest: open", err}
	}
	defer f.Close()

	var flags byte
	if m.GCRootsComputed {
		flags |= 1
	}
	if m.DominatorsComputed {
		flags |= 2
	}
	if m.RetainedSizesComputed {
		flags |= 4
	}

	configJSON, err := json.Marshal(m.Config)
	if err != nil {
		return &IOError{"SaveManifest: encode config", err}
	}
	compressed := manifestEncoder.EncodeAll(configJSON, nil)

	header := make([]byte, 32)
	copy(header[0:4], manifestMagic)
	binary.LittleEndian.PutUint16(header[4:6], manifestVersion)
	binary.LittleEndian.PutUint16(header[6:8], uint16(m.PointerWidth))
	binary.LittleEndian.PutUint64(header[8:16], uint64(m.ObjectCount))
	header[16] = flags
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[24:28], uint32(m.RefListMapped))
	binary.LittleEndian.PutUint32(header[28:32], uint32(m.RefListNext))

	if _, err := f.Write(header); err != nil {
		return &IOError{"SaveManifest: write header", err}
	}
	if _, err := f.Write(compressed); err != nil {
		return &IOError{"SaveManifest: write blob", err}
	}
	if !syncWrites {
		return nil
	}
	return f.Sync()
}

// LoadManifest rehydrates a manifest previously written by
// SaveManifest, returning ErrCorruptPersisted if the magic/version
// check fails.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, &IOError{"LoadManifest: read", err}
	}
	if len(data) < 32 || string(data[0:4]) != manifestMagic {
		return Manifest{}, ErrCorruptPersisted
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != manifestVersion {
		return Manifest{}, ErrCorruptPersisted
	}
	pw := PointerWidth(binary.LittleEndian.Uint16(data[6:8]))
	count := int64(binary.LittleEndian.Uint64(data[8:16]))
	flags := data[16]
	blobLen := binary.LittleEndian.Uint32(data[20:24])
	if uint32(len(data)-32) < blobLen {
		return Manifest{}, ErrCorruptPersisted
	}
	compressed := data[32 : 32+blobLen]
	configJSON, err := manifestDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return Manifest{}, ErrCorruptPersisted
	}
	var cfg Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return Manifest{}, ErrCorruptPersisted
	}
	return Manifest{
		ObjectCount:           count,
		PointerWidth:          pw,
		GCRootsComputed:       flags&1 != 0,
		DominatorsComputed:    flags&2 != 0,
		RetainedSizesComputed: flags&4 != 0,
		RefListMapped:         int32(binary.LittleEndian.Uint32(data[24:28])),
		RefListNext:           int32(binary.LittleEndian.Uint32(data[28:32])),
		Config:                cfg,
	}, nil
}
