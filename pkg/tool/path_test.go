package tool

import (
	"path/filepath"
	"testing"
)

func TestIsSupportedInput(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"DJI_0001_T.JPG", true},
		{"a.jpeg", true},
		{"dir/b.Jpg", true},
		{"c.tiff", false},
		{"jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSupportedInput(tt.name); got != tt.want {
				t.Errorf("IsSupportedInput(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		input  string
		output string
		want   string
	}{
		{name: "директория", input: "in/DJI_0001_T.JPG", output: dir, want: filepath.Join(dir, "DJI_0001_T.tiff")},
		{name: "tif", input: "a.jpg", output: "out/result.tif", want: "out/result.tif"},
		{name: "tiff", input: "a.jpg", output: "out/result.TIFF", want: "out/result.TIFF"},
		{name: "без расширения", input: "a.jpg", output: "out/result", want: "out/result.tiff"},
		{name: "png", input: "a.jpg", output: "out/result.png", want: "out/result.tiff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.input, tt.output); got != tt.want {
				t.Errorf("OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBatchOutputPath(t *testing.T) {
	got := BatchOutputPath("/data/in", "/data/in/flight1/DJI_0002_T.jpg", "/data/out")
	want := filepath.Join("/data/out", "flight1", "DJI_0002_T.tiff")
	if got != want {
		t.Errorf("BatchOutputPath() = %q, want %q", got, want)
	}
	got = BatchOutputPath("/data/in", "/other/x.jpg", "/data/out")
	if got != filepath.Join("/data/out", "x.tiff") {
		t.Errorf("BatchOutputPath() вне корня = %q", got)
	}
}
