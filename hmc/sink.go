package hmc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// SampleSink is an append-only writer for chain output. The stream is a
// small whitespace-ASCII format: a header line with the model dimension
// and the proposal count, one line per emitted state (N model components
// followed by the energy), and optionally an integer footer with the
// accepted count.
type SampleSink struct {
	w     *bufio.Writer
	n     int
	count int
	buf   []byte
}

// NewSampleSink writes the header "n records" and returns the sink.
func NewSampleSink(w io.Writer, n, records int) (*SampleSink, error) {
	s := &SampleSink{w: bufio.NewWriter(w), n: n}
	if _, err := fmt.Fprintf(s.w, "%d %d\n", n, records); err != nil {
		return nil, err
	}
	return s, nil
}

// Write appends one state line: the model components followed by energy.
func (s *SampleSink) Write(m *mat.VecDense, energy float64) error {
	if m.Len() != s.n {
		return fmt.Errorf("sample has %d components, sink expects %d: %w",
			m.Len(), s.n, ErrDimension)
	}
	s.buf = s.buf[:0]
	for i := 0; i < s.n; i++ {
		s.buf = strconv.AppendFloat(s.buf, m.AtVec(i), 'g', -1, 64)
		s.buf = append(s.buf, ' ')
	}
	s.buf = strconv.AppendFloat(s.buf, energy, 'g', -1, 64)
	s.buf = append(s.buf, '\n')
	_, err := s.w.Write(s.buf)
	if err == nil {
		s.count++
	}
	return err
}

// Count returns the number of state lines written so far.
func (s *SampleSink) Count() int { return s.count }

// CloseWithFooter writes the accepted count on its own line and flushes.
func (s *SampleSink) CloseWithFooter(accepted int) error {
	if _, err := fmt.Fprintf(s.w, "%d\n", accepted); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close flushes without a footer (trajectory streams have none).
func (s *SampleSink) Close() error {
	return s.w.Flush()
}
