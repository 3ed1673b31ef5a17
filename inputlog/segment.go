/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package inputlog

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pierrec/lz4/v4"

	"github.com/seriesdb/seriesdb/status"
)

// segment is one <seq>.log file of a shard (spec.md section 6: "N
// directories each holding a sequence of segment files <seq>.log").
// Writes go through a buffered writer, matching the teacher's
// persistence-files.go FileLogfile, but framed per record.go instead of
// newline-delimited.
type segment struct {
	seq  uint64
	path string
	f    *os.File
	w    *bufio.Writer
	size int // bytes written since open, used by the rotation policy
}

func segmentPath(dir string, seq uint64) string {
	return filepath.Join(dir, strconv.FormatUint(seq, 10)+".log")
}

func createSegment(dir string, seq uint64) (*segment, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, status.Wrap(status.IoError, "mkdir shard dir", err)
	}
	path := segmentPath(dir, seq)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return nil, status.Wrap(status.IoError, "open segment", err)
	}
	return &segment{seq: seq, path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// append writes one already-framed record (from EncodeRecord) into the
// segment's buffer. It does not fsync; that is the fsync worker's job.
func (s *segment) append(frame []byte) error {
	if _, err := s.w.Write(frame); err != nil {
		return status.Wrap(status.IoError, "buffer record", err)
	}
	s.size += len(frame)
	return nil
}

// flush pushes the buffered bytes to the OS and fsyncs the file, which is
// what makes the segment's tail durable (spec.md section 3: "A shard is
// considered durable once its tail has been fsynced by the sync worker").
func (s *segment) flush() error {
	if err := s.w.Flush(); err != nil {
		return status.Wrap(status.IoError, "flush segment", err)
	}
	if err := s.f.Sync(); err != nil {
		return status.Wrap(status.IoError, "fsync segment", err)
	}
	return nil
}

func (s *segment) close() error {
	_ = s.flush()
	return s.f.Close()
}

// compressClosed rewrites a fully-rotated, already-fsynced segment into an
// lz4-compressed sibling file and removes the raw one. Only ever called on
// segments the active writer has moved past, per the domain-stack note:
// rotated segments shrink while they wait for the watermark to pass them
// (spec.md section 4.2 "Rotation & retention").
func compressClosed(path string) (string, error) {
	raw, err := os.Open(path)
	if err != nil {
		return "", status.Wrap(status.IoError, "open segment for compression", err)
	}
	defer raw.Close()

	dstPath := path + ".lz4"
	dst, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return "", status.Wrap(status.IoError, "create compressed segment", err)
	}
	zw := lz4.NewWriter(dst)
	if _, err := io.Copy(zw, raw); err != nil {
		zw.Close()
		dst.Close()
		return "", status.Wrap(status.IoError, "compress segment", err)
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return "", status.Wrap(status.IoError, "finalize compressed segment", err)
	}
	if err := dst.Close(); err != nil {
		return "", status.Wrap(status.IoError, "close compressed segment", err)
	}
	if err := os.Remove(path); err != nil {
		return "", status.Wrap(status.IoError, "remove raw segment", err)
	}
	return dstPath, nil
}

// openSegmentReader returns a reader over a segment's records regardless
// of whether it is still raw or has already been lz4-compressed.
func openSegmentReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, status.Wrap(status.IoError, "open segment", err)
	}
	if filepath.Ext(path) == ".lz4" {
		return lz4ReadCloser{zr: lz4.NewReader(f), f: f}, nil
	}
	return f, nil
}

type lz4ReadCloser struct {
	zr *lz4.Reader
	f  *os.File
}

func (r lz4ReadCloser) Read(p []byte) (int, error) { return r.zr.Read(p) }
func (r lz4ReadCloser) Close() error                { return r.f.Close() }

// readFrames decodes every complete frame in r, invoking fn for each. It
// returns the number of bytes consumed up to (and including) the last
// complete frame, so the caller can detect and truncate a torn tail
// (spec.md section 4.2 "Partial tails (torn writes) are truncated to the
// last valid record").
func readFrames(r io.Reader, fn func(Record) error) (consumed int64, tornTail bool, err error) {
	br := bufio.NewReader(r)
	for {
		lenBuf := make([]byte, 4)
		n, rerr := io.ReadFull(br, lenBuf)
		if rerr == io.EOF {
			return consumed, false, nil
		}
		if rerr != nil || n < 4 {
			return consumed, true, nil // torn length prefix
		}
		frameLen := binary.LittleEndian.Uint32(lenBuf)
		frame := make([]byte, frameLen+4) // +4 trailing CRC
		n, rerr = io.ReadFull(br, frame)
		if rerr != nil || uint32(n) != frameLen+4 {
			return consumed, true, nil // torn body
		}
		rec, derr := DecodeRecord(frame)
		if derr != nil {
			return consumed, true, nil // CRC mismatch: treat as torn tail
		}
		if err := fn(rec); err != nil {
			return consumed, false, err
		}
		consumed += int64(4 + len(frame))
	}
}
