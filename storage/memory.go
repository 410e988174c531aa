package storage

// In memory implementation of Storage below

type MemoryStorage struct {
	Documents map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Documents: map[string][]byte{},
	}
}

func (s *MemoryStorage) PutDocument(key string, body []byte) error {
	buf := make([]byte, len(body))
	copy(buf, body)
	s.Documents[key] = buf
	return nil
}

func (s *MemoryStorage) GetDocument(key string) ([]byte, error) {
	body, found := s.Documents[key]
	if !found {
		return nil, ErrNotFound
	}
	return body, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
