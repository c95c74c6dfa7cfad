package storage

// SeedRaw is a test helper that writes raw bytes into an in-memory store, bypassing validation.
func SeedRaw(s Store, key string, value []byte) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.entries[key] = value
	}
}

// FailPuts is a test helper that makes every subsequent Put on an in-memory store return err.
func FailPuts(s Store, err error) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.failPut = err
	}
}
