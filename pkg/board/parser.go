package board

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	bidib "github.com/trinnguyen/libbidib"
)

// ParseFile loads a board table from an ini file on disk. Each section
// describes one board:
//
//	[onecontrol]
//	unique-id = 0x05000D6B0012EA
//	address = 1.0.0.0
//
// Sections that fail to parse are logged and skipped.
func ParseFile(filePath string) (*Registry, error) {
	return parse(filePath)
}

// ParseRaw loads a board table from raw ini bytes.
func ParseRaw(data []byte) (*Registry, error) {
	return parse(data)
}

func parse(filePathOrData any) (*Registry, error) {
	file, err := ini.Load(filePathOrData)
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		board, err := parseSection(name, section)
		if err != nil {
			log.Errorf("Skipping board %v : %v", name, err)
			continue
		}
		registry.Add(board)
	}
	return registry, nil
}

func parseSection(name string, section *ini.Section) (Board, error) {
	uniqueKey, err := section.GetKey("unique-id")
	if err != nil {
		return Board{}, err
	}
	uniqueID, err := strconv.ParseUint(uniqueKey.String(), 0, 64)
	if err != nil {
		return Board{}, fmt.Errorf("unique-id : %w", err)
	}
	addrKey, err := section.GetKey("address")
	if err != nil {
		return Board{}, err
	}
	addr, err := parseAddress(addrKey.String())
	if err != nil {
		return Board{}, fmt.Errorf("address : %w", err)
	}
	// configured boards start out connected; Registry.SetConnected
	// flags them lost later
	return Board{Name: name, UniqueID: uniqueID, Addr: addr, Connected: true}, nil
}

// parseAddress reads a dotted address stack, e.g. "1.2.0.0" or "0x01.0x02".
func parseAddress(raw string) (bidib.Address, error) {
	var addr bidib.Address
	parts := strings.Split(raw, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return addr, fmt.Errorf("expected 1 to 4 dotted bytes, got %q", raw)
	}
	for i, part := range parts {
		hop, err := strconv.ParseUint(strings.TrimSpace(part), 0, 8)
		if err != nil {
			return addr, err
		}
		addr[i] = uint8(hop)
	}
	return addr, nil
}
