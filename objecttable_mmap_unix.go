//go:build unix || linux || darwin

// mmap-backed region for ObjectTable on Unix platforms, grounded on the
// header+mmap'd-region pattern used by the retrieved example pack's
// disk-backed cache implementations (golang.org/x/sys/unix.Mmap over a
// truncated file, synced back with msync/unmap on Close).
package reachability

import (
	"os"

	"golang.org/x/sys/unix"
)

type unixMappedRegion struct {
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
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &unixMappedRegion{f: f, data: data}, nil
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
	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &unixMappedRegion{f: f, data: data}, nil
}

func (r *unixMappedRegion) Bytes() []byte { return r.data }

func (r *unixMappedRegion) Close() error {
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			r.f.Close()
			return err
		}
		r.data = nil
	}
	return r.f.Close()
}
