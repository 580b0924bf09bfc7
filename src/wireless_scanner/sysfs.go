package wireless_scanner

import (
	"os"
	"path/filepath"
)

// isWireless reports whether the kernel exposes name as a wireless device under root.
func isWireless(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, name, "wireless"))
	return err == nil
}
