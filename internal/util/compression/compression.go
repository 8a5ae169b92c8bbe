// Package compression encodes HTTP response bodies with the best encoding a
// client accepts.
package compression

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type Compressor interface {
	// Encoding is the Content-Encoding token.
	Encoding() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

type GzipCompressor struct{}

func (GzipCompressor) Encoding() string { return "gzip" }

func (GzipCompressor) Compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	writer := gzip.NewWriter(&b)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var b bytes.Buffer
	if _, err := b.ReadFrom(reader); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

type ZstdCompressor struct{}

func (ZstdCompressor) Encoding() string { return "zstd" }

func (ZstdCompressor) Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

func (ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// Preferred lists the supported encodings, best first.
var Preferred = []Compressor{ZstdCompressor{}, GzipCompressor{}}

// Negotiate picks a compressor for an Accept-Encoding header. It returns nil
// when the body should be sent as is. Ties on q go to the earlier entry of
// Preferred.
func Negotiate(acceptEncoding string) Compressor {
	weights := map[string]float64{}
	for _, part := range strings.Split(acceptEncoding, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			q = parsed
		}
		weights[token] = q
	}

	var best Compressor
	bestQ := 0.0
	for _, c := range Preferred {
		q, ok := weights[c.Encoding()]
		if !ok {
			q, ok = weights["*"]
		}
		if ok && q > bestQ {
			best, bestQ = c, q
		}
	}
	return best
}
