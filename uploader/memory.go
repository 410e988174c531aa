package uploader

import (
	"context"
)

// Captures uploads in memory
type MemoryUploader struct {
	Objects map[string]MemoryObject
}

type MemoryObject struct {
	Body    []byte
	Options PutOptions
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{
		Objects: map[string]MemoryObject{},
	}
}

func (u *MemoryUploader) Put(ctx context.Context, key string, body []byte, options PutOptions) error {
	buf := make([]byte, len(body))
	copy(buf, body)
	u.Objects[key] = MemoryObject{
		Body:    buf,
		Options: options,
	}
	return nil
}
