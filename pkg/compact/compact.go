// Package compact 提供文本的无损压缩与还原
package compact

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

// Compress 以 gzip 最高压缩级别压缩文本，空文本返回空切片
func Compress(text string) ([]byte, error) {
	if text == "" {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, text); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress 还原 Compress 的输出，空输入返回空文本
func Decompress(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrDeserialization, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrDeserialization, err)
	}
	return string(out), nil
}
