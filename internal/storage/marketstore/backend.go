package marketstore

import "fmt"

// Backend names accepted by Open.
const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Open creates a backend by name. The memory backend ignores path.
func Open(backend, path string) (DB, error) {
	switch backend {
	case BackendPebble:
		return OpenPebble(path)
	case BackendLevelDB:
		return OpenLevelDB(path)
	case BackendMemory:
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("marketstore: unknown backend %q", backend)
	}
}
