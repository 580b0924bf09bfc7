//go:build linux

package wireless_scanner

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

const sysClassNet = "/sys/class/net"

// discoverWirelessInterfaces lists links through netlink and keeps those the
// kernel exposes as wireless.
func discoverWirelessInterfaces() ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, fmt.Errorf("failed to list network links: %w", err)
	}

	var names []string
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil {
			continue
		}
		if isWireless(sysClassNet, attrs.Name) {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}
