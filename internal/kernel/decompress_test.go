package kernel

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestDecompressReaderPassthroughWithoutEncoding(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewBufferString("plain text")),
	}

	r, err := decompressReader(resp)
	if err != nil {
		t.Fatalf("decompressReader: %v", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if string(data) != "plain text" {
		t.Fatalf("got %q", data)
	}
}

func TestDecompressReaderGzip(t *testing.T) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte("hello gzip")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}

	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"gzip"}},
		Body:   io.NopCloser(&buf),
	}

	r, err := decompressReader(resp)
	if err != nil {
		t.Fatalf("decompressReader: %v", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if string(data) != "hello gzip" {
		t.Fatalf("got %q", data)
	}
}

func TestDecompressReaderBrotli(t *testing.T) {
	var buf bytes.Buffer

	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write([]byte("hello brotli")); err != nil {
		t.Fatalf("brotli write: %v", err)
	}

	if err := bw.Close(); err != nil {
		t.Fatalf("brotli close: %v", err)
	}

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"br"}},
		Body:   io.NopCloser(&buf),
	}

	r, err := decompressReader(resp)
	if err != nil {
		t.Fatalf("decompressReader: %v", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if string(data) != "hello brotli" {
		t.Fatalf("got %q", data)
	}
}
