// Append-only sequences of fixed-width integers that spill to a temp
// file once an in-memory page fills. Used as BFS frontiers, as the
// MultipleParentsStream, and as the LeavesStream.
//
// Three states: empty, in-memory (size <= one page), spilled (backed by
// a temp file opened through the cache directory). write() transitions
// empty/in-memory to spilled by flushing the page exactly once.
// startReading() seals writes and positions a single read cursor;
// further write calls after that are a programming error and panic,
// mirroring the teacher's single-cursor sequential-read discipline.
package reachability

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
)

type pagedNumber interface{ ~int32 | ~int64 }

// pagedStream is the shared state machine behind PagedIntStream and
// PagedLongStream. Grounded on the teacher's offsetWriter (sequential
// WriteAt tracking a tail offset) and line/align (sequential
// io.SectionReader + bufio reads), generalized from newline-delimited
// JSON records to fixed-width binary integers.
type pagedStream[T pagedNumber] struct {
	tmp      tempFileOpener
	pageSize int

	page     []T // in-memory page, valid only while !spilled
	count    int64
	spilled  bool
	file     *os.File
	writer   *bufio.Writer
	reading  bool
	readFile *os.File
	reader   *bufio.Reader
	readLeft int64
}

// tempFileOpener is the subset of the cache-directory contract (§6)
// that streams need: a unique writable path per stream.
type tempFileOpener interface {
	createTempFile(prefix, suffix string) (string, error)
}

func newPagedStream[T pagedNumber](tmp tempFileOpener, pageSize int) *pagedStream[T] {
	if pageSize <= 0 {
		pageSize = 1 << 16
	}
	return &pagedStream[T]{tmp: tmp, pageSize: pageSize}
}

func (s *pagedStream[T]) size() int64 { return s.count }

// write appends v. Transitions to spilled on overflow by flushing the
// current page to a fresh temp file exactly once.
func (s *pagedStream[T]) write(v T) error {
	if s.reading {
		panic("pagedStream: write after startReading")
	}
	if !s.spilled {
		s.page = append(s.page, v)
		s.count++
		if len(s.page) > s.pageSize {
			if err := s.spill(); err != nil {
				return err
			}
		}
		return nil
	}
	if err := binary.Write(s.writer, binary.LittleEndian, v); err != nil {
		return &IOError{"pagedStream.write", err}
	}
	s.count++
	return nil
}

func (s *pagedStream[T]) spill() error {
	path, err := s.tmp.createTempFile("pagedstream", ".bin")
	if err != nil {
		return &IOError{"pagedStream.spill: createTempFile", err}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{"pagedStream.spill: open", err}
	}
	w := bufio.NewWriterSize(f, 1<<16)
	for _, v := range s.page {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			f.Close()
			return &IOError{"pagedStream.spill: write", err}
		}
	}
	s.file = f
	s.writer = w
	s.spilled = true
	s.page = nil
	return nil
}

// startReading seals writes and positions the read cursor at the
// beginning of the sequence.
func (s *pagedStream[T]) startReading() error {
	if s.reading {
		return nil
	}
	s.reading = true
	if !s.spilled {
		s.readLeft = int64(len(s.page))
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return &IOError{"pagedStream.startReading: flush", err}
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return &IOError{"pagedStream.startReading: seek", err}
	}
	s.readFile = s.file
	s.reader = bufio.NewReaderSize(s.readFile, 1<<16)
	s.readLeft = s.count
	return nil
}

// rewind resets the read cursor back to the beginning without
// resealing writes, so a stream already sealed by startReading can be
// read start-to-finish multiple times — the DominatorEngine's fixed
// point alternates between S and reverse(S) across many passes, each
// needing a fresh pass over the same sequence.
func (s *pagedStream[T]) rewind() error {
	if !s.reading {
		return s.startReading()
	}
	if !s.spilled {
		s.readLeft = int64(len(s.page))
		return nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return &IOError{"pagedStream.rewind: seek", err}
	}
	s.reader = bufio.NewReaderSize(s.file, 1<<16)
	s.readLeft = s.count
	return nil
}

// read returns the next integer in write order, or 0 at end of stream.
// Value 0 is legal data where callers don't contract it as a
// terminator — most readers in this package do.
func (s *pagedStream[T]) read() (T, error) {
	if !s.reading {
		if err := s.startReading(); err != nil {
			return 0, err
		}
	}
	if s.readLeft <= 0 {
		return 0, nil
	}
	var v T
	if !s.spilled {
		idx := int64(len(s.page)) - s.readLeft
		v = s.page[idx]
	} else {
		if err := binary.Read(s.reader, binary.LittleEndian, &v); err != nil {
			return 0, &IOError{"pagedStream.read", err}
		}
	}
	s.readLeft--
	return v, nil
}

// reverse produces a new stream whose read sequence is the reverse of
// this one's write sequence. For the spilled case this reads the
// backing file in backward-sweeping page-sized chunks, reverses each
// chunk in memory, and appends it to the new stream — it never needs
// random access through the original reader, only through the file.
func (s *pagedStream[T]) reverse() (*pagedStream[T], error) {
	out := newPagedStream[T](s.tmp, s.pageSize)
	if !s.spilled {
		for i := len(s.page) - 1; i >= 0; i-- {
			if err := out.write(s.page[i]); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	if err := s.writer.Flush(); err != nil {
		return nil, &IOError{"pagedStream.reverse: flush", err}
	}
	const elemSize = 8 // worst case int64; int32 chunks just waste half the buffer
	chunk := make([]T, s.pageSize)
	buf := make([]byte, s.pageSize*elemSize)

	total := s.count
	pos := total
	for pos > 0 {
		n := int64(s.pageSize)
		if n > pos {
			n = pos
		}
		start := pos - n
		if err := s.readChunkAt(start, n, chunk, buf); err != nil {
			return nil, err
		}
		for i := n - 1; i >= 0; i-- {
			if err := out.write(chunk[i]); err != nil {
				return nil, err
			}
		}
		pos = start
	}
	return out, nil
}

func (s *pagedStream[T]) readChunkAt(start, n int64, chunk []T, buf []byte) error {
	var sz int64
	var zero T
	switch any(zero).(type) {
	case int32:
		sz = 4
	default:
		sz = 8
	}
	b := buf[:n*sz]
	if _, err := s.file.ReadAt(b, start*sz); err != nil && err != io.EOF {
		return &IOError{"pagedStream.readChunkAt", err}
	}
	for i := int64(0); i < n; i++ {
		switch z := any(&chunk[i]).(type) {
		case *int32:
			*z = int32(binary.LittleEndian.Uint32(b[i*sz:]))
		case *int64:
			*z = int64(binary.LittleEndian.Uint64(b[i*sz:]))
		}
	}
	return nil
}

// delete releases any backing temp file.
func (s *pagedStream[T]) delete() error {
	if s.readFile != nil {
		s.readFile.Close()
	} else if s.file != nil {
		s.file.Close()
	}
	if s.spilled && s.file != nil {
		if err := os.Remove(s.file.Name()); err != nil && !os.IsNotExist(err) {
			return &IOError{"pagedStream.delete", err}
		}
	}
	s.page = nil
	return nil
}

// PagedIntStream is an append-only sequence of 32-bit integers.
type PagedIntStream struct{ *pagedStream[int32] }

// NewPagedIntStream returns an empty stream backed by tmp for spilling.
func NewPagedIntStream(tmp tempFileOpener, pageSize int) *PagedIntStream {
	return &PagedIntStream{newPagedStream[int32](tmp, pageSize)}
}

func (s *PagedIntStream) Write(v int32) error  { return s.write(v) }
func (s *PagedIntStream) Read() (int32, error) { return s.read() }
func (s *PagedIntStream) StartReading() error  { return s.startReading() }
func (s *PagedIntStream) Rewind() error        { return s.rewind() }
func (s *PagedIntStream) Size() int64          { return s.size() }
func (s *PagedIntStream) Delete() error        { return s.delete() }
func (s *PagedIntStream) Reverse() (*PagedIntStream, error) {
	r, err := s.reverse()
	if err != nil {
		return nil, err
	}
	return &PagedIntStream{r}, nil
}

// PagedLongStream is an append-only sequence of 64-bit integers, used
// for the BFS frontiers, which carry ObjectIndex values rather than
// HPROF file offsets.
type PagedLongStream struct{ *pagedStream[int64] }

// NewPagedLongStream returns an empty stream backed by tmp for spilling.
func NewPagedLongStream(tmp tempFileOpener, pageSize int) *PagedLongStream {
	return &PagedLongStream{newPagedStream[int64](tmp, pageSize)}
}

func (s *PagedLongStream) Write(v int64) error  { return s.write(v) }
func (s *PagedLongStream) Read() (int64, error) { return s.read() }
func (s *PagedLongStream) StartReading() error  { return s.startReading() }
func (s *PagedLongStream) Rewind() error        { return s.rewind() }
func (s *PagedLongStream) Size() int64          { return s.size() }
func (s *PagedLongStream) Delete() error        { return s.delete() }
func (s *PagedLongStream) Reverse() (*PagedLongStream, error) {
	r, err := s.reverse()
	if err != nil {
		return nil, err
	}
	return &PagedLongStream{r}, nil
}
