package uploader

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
)

// PutOptions hold the object metadata attached to an upload.
type PutOptions struct {
	CacheControl    string
	ContentType     string
	ContentEncoding string
	ACL             string
}

// A thing capable of publishing documents to an object store
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, options PutOptions) error
}

// DocumentOptions returns the metadata attached to published JSON
// documents: gzip encoded, publicly readable, cacheable for a day.
func DocumentOptions() PutOptions {
	return PutOptions{
		CacheControl:    "max-age=86400",
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		ACL:             "public-read",
	}
}

// Compress gzips a document body for upload.
func Compress(body []byte) ([]byte, error) {
	buf := &bytes.Buffer{}

	zw := gzip.NewWriter(buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}
