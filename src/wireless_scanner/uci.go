package wireless_scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/digineo/go-uci"
)

// staInterfacesFromUCI returns the ifnames of enabled station-mode
// wifi-iface sections in <root>/wireless. Hosts without the file yield nothing.
func staInterfacesFromUCI(root string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(root, "wireless")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	tree := uci.NewTree(root)
	if err := tree.LoadConfig("wireless", false); err != nil {
		return nil, fmt.Errorf("failed to load UCI wireless config: %w", err)
	}

	sections, ok := tree.GetSections("wireless", "wifi-iface")
	if !ok {
		return nil, nil
	}

	var names []string
	for _, section := range sections {
		if first(tree.Get("wireless", section, "mode")) != "sta" {
			continue
		}
		if first(tree.Get("wireless", section, "disabled")) == "1" {
			continue
		}
		if ifname := first(tree.Get("wireless", section, "ifname")); ifname != "" {
			names = append(names, ifname)
		}
	}
	logger.WithField("interfaces", names).Debug("Resolved STA interfaces from UCI")
	return names, nil
}

func first(values []string, ok bool) string {
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}
