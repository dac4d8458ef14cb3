//go:build !cgo

package store

// Without cgo the sqlite driver cannot open databases; Open reports ErrCgoDisabled
// and callers run without a mapping store.
func init() {
	IsCgoEnabled = false
}
