// Package nifti reads and writes single-file NIfTI-1 volumes, the standard
// volumetric neuroimaging format. Output is little-endian float32 with the
// volume affine stored as the sform; files ending in .gz are
// gzip-compressed. Writes are whole-volume and byte-deterministic, so
// pipeline reruns with identical inputs produce identical files.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"alecontrast/pkg/volume"
)

const (
	headerSize = 348
	voxOffset  = 352 // header + 4-byte extension flag

	dtFloat32 = 16
	dtFloat64 = 64
)

// header is the fixed 348-byte NIfTI-1 header layout.
type header struct {
	SizeofHdr      int32
	DataTypeUnused [10]byte
	DBName         [18]byte
	Extents        int32
	SessionError   int16
	Regular        byte
	DimInfo        byte
	Dim            [8]int16
	IntentP1       float32
	IntentP2       float32
	IntentP3       float32
	IntentCode     int16
	Datatype       int16
	Bitpix         int16
	SliceStart     int16
	Pixdim         [8]float32
	VoxOffset      float32
	SclSlope       float32
	SclInter       float32
	SliceEnd       int16
	SliceCode      byte
	XyztUnits      byte
	CalMax         float32
	CalMin         float32
	SliceDuration  float32
	Toffset        float32
	Glmax          int32
	Glmin          int32
	Descrip        [80]byte
	AuxFile        [24]byte
	QformCode      int16
	SformCode      int16
	QuaternB       float32
	QuaternC       float32
	QuaternD       float32
	QoffsetX       float32
	QoffsetY       float32
	QoffsetZ       float32
	SrowX          [4]float32
	SrowY          [4]float32
	SrowZ          [4]float32
	IntentName     [16]byte
	Magic          [4]byte
}

// Save writes a volume to path as NIfTI-1. A .gz suffix selects gzip
// compression.
func Save(path string, vol *volume.Volume) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	var w io.Writer = file
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(file)
		defer gz.Close()
		w = gz
	}

	if err := encode(w, vol); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads a NIfTI-1 volume from path, transparently decompressing .gz
// files. Only little-endian single-file volumes with float32 or float64 data
// are supported.
func Load(path string) (*volume.Volume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume file: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	vol, err := decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return vol, nil
}

func encode(w io.Writer, vol *volume.Volume) error {
	hdr := header{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  dtFloat32,
		Bitpix:    32,
		VoxOffset: voxOffset,
		SclSlope:  1,
		XyztUnits: 2, // NIFTI_UNITS_MM
		SformCode: 1, // aligned to a known space
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(vol.Nx)
	hdr.Dim[2] = int16(vol.Ny)
	hdr.Dim[3] = int16(vol.Nz)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	hdr.Pixdim[0] = 1
	for j := 0; j < 3; j++ {
		var sq float64
		for i := 0; i < 3; i++ {
			sq += vol.Affine[i][j] * vol.Affine[i][j]
		}
		hdr.Pixdim[j+1] = float32(math.Sqrt(sq))
	}
	for j := 0; j < 4; j++ {
		hdr.SrowX[j] = float32(vol.Affine[0][j])
		hdr.SrowY[j] = float32(vol.Affine[1][j])
		hdr.SrowZ[j] = float32(vol.Affine[2][j])
	}
	copy(hdr.Descrip[:], "alecontrast statistic map")
	copy(hdr.Magic[:], "n+1\x00")

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	// Extension flag: no header extensions follow.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}

	buf := make([]byte, 4*len(vol.Data))
	for i, v := range vol.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	_, err := w.Write(buf)
	return err
}

func decode(r io.Reader) (*volume.Volume, error) {
	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.SizeofHdr != headerSize {
		return nil, fmt.Errorf("unsupported header size %d (big-endian files are not supported)", hdr.SizeofHdr)
	}
	magic := string(bytes.TrimRight(hdr.Magic[:], "\x00"))
	if magic != "n+1" {
		return nil, fmt.Errorf("not a single-file NIfTI-1 volume (magic %q)", magic)
	}
	if hdr.Dim[0] != 3 {
		return nil, fmt.Errorf("expected a 3-D volume, got %d dimensions", hdr.Dim[0])
	}
	if hdr.Datatype != dtFloat32 && hdr.Datatype != dtFloat64 {
		return nil, fmt.Errorf("unsupported datatype %d", hdr.Datatype)
	}

	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", nx, ny, nz)
	}

	var affine volume.Affine
	if hdr.SformCode > 0 {
		for j := 0; j < 4; j++ {
			affine[0][j] = float64(hdr.SrowX[j])
			affine[1][j] = float64(hdr.SrowY[j])
			affine[2][j] = float64(hdr.SrowZ[j])
		}
	} else {
		// Fall back to a scaling affine from pixdim.
		for i := 0; i < 3; i++ {
			affine[i][i] = float64(hdr.Pixdim[i+1])
		}
	}
	affine[3][3] = 1

	// Skip from the end of the header to the start of the voxel data.
	skip := int64(hdr.VoxOffset) - headerSize
	if skip < 0 {
		return nil, fmt.Errorf("invalid vox_offset %g", hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, err
	}

	vol := volume.New(nx, ny, nz, affine)
	elemSize := 4
	if hdr.Datatype == dtFloat64 {
		elemSize = 8
	}
	buf := make([]byte, elemSize*len(vol.Data))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("truncated voxel data: %w", err)
	}
	for i := range vol.Data {
		if hdr.Datatype == dtFloat32 {
			vol.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		} else {
			vol.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
	}

	// Apply the scale factor when present. A zero slope means "unscaled".
	if hdr.SclSlope != 0 && (hdr.SclSlope != 1 || hdr.SclInter != 0) {
		for i := range vol.Data {
			vol.Data[i] = vol.Data[i]*float64(hdr.SclSlope) + float64(hdr.SclInter)
		}
	}

	return vol, nil
}
