//go:build !unix

package arena

// mapAnon reports no mapping so New falls back to Go memory.
func mapAnon(int) ([]byte, func() error, error) {
	return nil, nil, nil
}
