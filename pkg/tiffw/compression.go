package tiffw

import (
	"bytes"
	"compress/zlib"

	"github.com/hhrutter/lzw"
	"github.com/juju/errors"
)

// SupportedCompression схема сжатия поддерживается Encode
func SupportedCompression(c uint16) bool {
	switch c {
	case CompressionNone, CompressionLZW, CompressionDeflate:
		return true
	}
	return false
}

func compress(raw []byte, c uint16) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionLZW:
		var buf bytes.Buffer
		// TIFF LZW использует раннее переключение ширины кода
		wc := lzw.NewWriter(&buf, true)
		if _, err := wc.Write(raw); err != nil {
			return nil, errors.Trace(err)
		}
		if err := wc.Close(); err != nil {
			return nil, errors.Trace(err)
		}
		return buf.Bytes(), nil
	case CompressionDeflate:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, errors.Trace(err)
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Trace(err)
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Errorf("неподдерживаемое сжатие %d", c)
}
