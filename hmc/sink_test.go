package hmc

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSampleSinkFormat(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSampleSink(&buf, 2, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(mat.NewVecDense(2, []float64{1.5, -2.25}), 0.125); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(mat.NewVecDense(2, []float64{0, 3}), 42); err != nil {
		t.Fatal(err)
	}
	if sink.Count() != 2 {
		t.Fatalf("count %d, want 2", sink.Count())
	}
	if err := sink.CloseWithFooter(7); err != nil {
		t.Fatal(err)
	}

	want := "2 100\n1.5 -2.25 0.125\n0 3 42\n7\n"
	if got := buf.String(); got != want {
		t.Fatalf("sink output %q, want %q", got, want)
	}
}

func TestSampleSinkDimensionCheck(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSampleSink(&buf, 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(mat.NewVecDense(2, nil), 0); !errors.Is(err, ErrDimension) {
		t.Fatalf("accepted wrong-length sample: %v", err)
	}
	if sink.Count() != 0 {
		t.Fatalf("count %d after rejected write", sink.Count())
	}
}

func TestSampleSinkNoFooter(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSampleSink(&buf, 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(mat.NewVecDense(1, []float64{9}), 1); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("unexpected trailing content: %q", buf.String())
	}
}
