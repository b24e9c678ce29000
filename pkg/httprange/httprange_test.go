package httprange

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    Range
		wantErr error
	}{
		{name: "closed range", header: "bytes=0-99", size: 1000, want: Range{0, 99}},
		{name: "open end", header: "bytes=500-", size: 1000, want: Range{500, 999}},
		{name: "end clamped", header: "bytes=900-5000", size: 1000, want: Range{900, 999}},
		{name: "missing start means zero", header: "bytes=-100", size: 1000, want: Range{0, 100}},
		{name: "single last byte", header: "bytes=999-999", size: 1000, want: Range{999, 999}},
		{name: "first of many", header: "bytes=0-9, 20-29", size: 1000, want: Range{0, 9}},
		{name: "unit is case insensitive", header: "Bytes=1-2", size: 10, want: Range{1, 2}},
		{name: "start past end of file", header: "bytes=2000-2100", size: 1000, wantErr: ErrUnsatisfiable},
		{name: "start equals size", header: "bytes=1000-", size: 1000, wantErr: ErrUnsatisfiable},
		{name: "inverted", header: "bytes=50-10", size: 1000, wantErr: ErrUnsatisfiable},
		{name: "empty resource", header: "bytes=0-", size: 0, wantErr: ErrUnsatisfiable},
		{name: "wrong unit", header: "items=0-10", size: 1000, wantErr: ErrMalformed},
		{name: "no dash", header: "bytes=10", size: 1000, wantErr: ErrMalformed},
		{name: "no bounds", header: "bytes=-", size: 1000, wantErr: ErrMalformed},
		{name: "not a number", header: "bytes=a-b", size: 1000, wantErr: ErrMalformed},
		{name: "empty", header: "", size: 1000, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.header, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.header, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.header, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.header, got, tt.want)
			}
		})
	}
}

func TestContentRange(t *testing.T) {
	r := Range{Start: 0, End: 99}
	if got := r.ContentRange(1000); got != "bytes 0-99/1000" {
		t.Fatalf("ContentRange = %q", got)
	}
	if r.Length() != 100 {
		t.Fatalf("Length = %d", r.Length())
	}
	if got := UnsatisfiedRange(1000); got != "bytes */1000" {
		t.Fatalf("UnsatisfiedRange = %q", got)
	}
}
