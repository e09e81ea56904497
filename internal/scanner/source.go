package scanner

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// LineSource treats each non-empty line of a reader as one scan. USB barcode
// readers in keyboard mode produce exactly this.
type LineSource struct {
	r     io.Reader
	scans chan string
	stop  chan struct{}
	once  sync.Once
}

// NewLineSource starts reading r immediately.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{r: r, scans: make(chan string), stop: make(chan struct{})}
	go s.read()
	return s
}

func (s *LineSource) read() {
	defer close(s.scans)
	sc := bufio.NewScanner(s.r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case <-s.stop:
			return
		default:
		}
		select {
		case s.scans <- line:
		case <-s.stop:
			return
		}
	}
}

func (s *LineSource) Scans() <-chan string { return s.scans }

// Close stops delivery and closes the reader when it is an io.Closer. A reader
// that cannot be closed keeps the read goroutine parked in Scan until its next
// line or EOF; that line is discarded.
func (s *LineSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		if c, ok := s.r.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}
