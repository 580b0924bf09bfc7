//go:build !linux

package wireless_scanner

// discoverWirelessInterfaces is only implemented on Linux.
func discoverWirelessInterfaces() ([]string, error) {
	return nil, ErrNoInterfaces
}
