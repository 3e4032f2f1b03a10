package parser

import (
	"bytes"
	"fmt"
	"io"
)

// sample holds a possibly windowed read of a source.
type sample struct {
	head    []byte
	tail    []byte // empty unless windowed
	omitted int64
}

func (s sample) windowed() bool { return s.omitted > 0 }

// headShare is the fraction of the ceiling given to the start of a source;
// the rest goes to the end, where root-cause lines cluster.
const headShare = 4

// splitCeiling divides limit into head and tail budgets.
func splitCeiling(limit int) (headN, tailN int) {
	headN = limit / headShare
	return headN, limit - headN
}

// sampleReaderAt windows a random-access source of known size.
func sampleReaderAt(r io.ReaderAt, size int64, limit int) (sample, error) {
	if size <= int64(limit) {
		buf := make([]byte, size)
		n, err := r.ReadAt(buf, 0)
		if err != nil && err != io.EOF {
			return sample{}, err
		}
		return sample{head: buf[:n]}, nil
	}
	headN, tailN := splitCeiling(limit)
	head := make([]byte, headN)
	if _, err := r.ReadAt(head, 0); err != nil && err != io.EOF {
		return sample{}, err
	}
	tail := make([]byte, tailN)
	if _, err := r.ReadAt(tail, size-int64(tailN)); err != nil && err != io.EOF {
		return sample{}, err
	}
	return trimToLines(head, tail, size-int64(headN+tailN)), nil
}

// sampleReader windows a stream of unknown length, keeping the first headN
// bytes and a rolling window of the last tailN bytes.
func sampleReader(r io.Reader, limit int) (sample, error) {
	headN, tailN := splitCeiling(limit)
	var (
		head  []byte
		tail  []byte
		total int64
	)
	buf := make([]byte, 32*1024)
	// Read up to limit into head first so short streams are kept whole.
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			chunk := buf[:n]
			if room := limit - len(head); room > 0 && len(tail) == 0 {
				take := min(room, len(chunk))
				head = append(head, chunk[:take]...)
				chunk = chunk[take:]
			}
			if len(chunk) > 0 {
				tail = append(tail, chunk...)
				if len(tail) > tailN {
					tail = append(tail[:0], tail[len(tail)-tailN:]...)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return sample{}, err
		}
	}
	if total <= int64(limit) {
		return sample{head: head}, nil
	}
	// The head buffer over-read; move its excess into the tail window.
	extra := head[headN:]
	head = head[:headN]
	if len(tail) < tailN {
		need := tailN - len(tail)
		if need > len(extra) {
			need = len(extra)
		}
		tail = append(append([]byte(nil), extra[len(extra)-need:]...), tail...)
	}
	return trimToLines(head, tail, total-int64(len(head)+len(tail))), nil
}

// trimToLines cuts head after its last newline and tail after its first, so
// neither side starts or ends with a partial line (or a partial rune).
func trimToLines(head, tail []byte, omitted int64) sample {
	if i := bytes.LastIndexByte(head, '\n'); i >= 0 {
		omitted += int64(len(head) - i - 1)
		head = head[:i+1]
	}
	if i := bytes.IndexByte(tail, '\n'); i >= 0 && i < len(tail)-1 {
		omitted += int64(i + 1)
		tail = tail[i+1:]
	}
	return sample{head: head, tail: tail, omitted: omitted}
}

// omissionMarker is the line inserted between head and tail.
func omissionMarker(omitted int64) string {
	return fmt.Sprintf("[... %d bytes omitted ...]", omitted)
}
