package skillchat

import "bytes"

// Frame is the payload of one data: line.
type Frame struct {
	Data []byte
}

// IsDone reports whether the frame is the [DONE] sentinel.
func (f Frame) IsDone() bool {
	return string(f.Data) == DoneSentinel
}

var dataPrefix = []byte("data:")

// Decoder splits a server-sent event byte stream into frames.
//
// Decoding is line oriented: each complete line beginning with "data:" is one
// frame and blank lines only separate events. Streams framed with "\n\n" and
// streams that put one data: line after another with single newlines therefore
// decode the same way. Bytes after the last newline are kept until the next
// Feed or Flush.
type Decoder struct {
	buf []byte
}

// Feed appends p to the buffer and returns the frames completed by it.
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		if f, ok := parseLine(d.buf[:i]); ok {
			frames = append(frames, f)
		}
		d.buf = d.buf[i+1:]
	}

	// Reclaim the consumed prefix once the buffer drains.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Flush returns a trailing data: line that was never newline-terminated and
// resets the decoder. Call it once the underlying stream has ended.
func (d *Decoder) Flush() []Frame {
	rest := d.buf
	d.buf = nil
	if f, ok := parseLine(rest); ok {
		return []Frame{f}
	}
	return nil
}

// Buffered returns the number of bytes held for an incomplete line.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// parseLine extracts the payload of a data: line. Other SSE fields (event:,
// id:, retry:), comments and blank lines yield no frame.
func parseLine(line []byte) (Frame, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, dataPrefix) {
		return Frame{}, false
	}
	data := line[len(dataPrefix):]
	data = bytes.TrimPrefix(data, []byte(" "))
	if len(bytes.TrimSpace(data)) == 0 {
		return Frame{}, false
	}
	// Copy out of the shared buffer; it is reused by later reads.
	return Frame{Data: append([]byte(nil), data...)}, true
}
