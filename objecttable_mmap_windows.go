//go:build windows

// Windows fallback: no mmap, a fully-buffered file read into memory
// with the whole region written back on Close. Adequate for the sizes
// exercised by tests; a production Windows build would use
// CreateFileMapping/MapViewOfFile instead.
package reachability

import "os"

type windowsMappedRegion struct {
	f    *os.File
	data []byte
}

func createMappedRegion(path string, size int) (mappedRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	return &windowsMappedRegion{f: f, data: make([]byte, size)}, nil
}

func openMappedRegion(path string) (mappedRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		f.Close()
		return nil, err
	}
	return &windowsMappedRegion{f: f, data: data}, nil
}

func (r *windowsMappedRegion) Bytes() []byte { return r.data }

func (r *windowsMappedRegion) Close() error {
	if _, err := r.f.WriteAt(r.data, 0); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
