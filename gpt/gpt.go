// Package gpt reads GPT partition entries straight off a device node.
// It is a read-only peek used for the info surface; replication always
// goes through sgdisk.
package gpt

import (
	"encoding/binary"
	"fmt"
	"os"
	"unicode/utf16"
)

const (
	sectorSize   = 512
	headerSig    = "EFI PART"
	nameOffset   = 56
	nameBytesLen = 72
)

type Partition struct {
	Number     int
	Name       string
	FirstLBA   uint64
	LastLBA    uint64
	NumSectors uint64
}

// SizeBytes is the partition extent in bytes, assuming 512-byte sectors.
func (p Partition) SizeBytes() int64 {
	return int64(p.NumSectors) * sectorSize
}

// ReadPartitions parses the GPT header at LBA 1 and returns the non-empty
// partition entries in table order.
func ReadPartitions(devicePath string) ([]Partition, error) {
	f, err := os.Open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer f.Close()

	hdr := make([]byte, sectorSize)
	if _, err := f.ReadAt(hdr, sectorSize); err != nil {
		return nil, fmt.Errorf("reading GPT header: %w", err)
	}
	if string(hdr[0:8]) != headerSig {
		return nil, fmt.Errorf("%s has no GPT signature", devicePath)
	}

	entriesLBA := binary.LittleEndian.Uint64(hdr[72:80])
	entryCount := binary.LittleEndian.Uint32(hdr[80:84])
	entrySize := binary.LittleEndian.Uint32(hdr[84:88])
	if entrySize < nameOffset+nameBytesLen {
		return nil, fmt.Errorf("implausible GPT entry size %d", entrySize)
	}

	table := make([]byte, int64(entryCount)*int64(entrySize))
	if _, err := f.ReadAt(table, int64(entriesLBA)*sectorSize); err != nil {
		return nil, fmt.Errorf("reading partition entries: %w", err)
	}

	var parts []Partition
	for i := uint32(0); i < entryCount; i++ {
		entry := table[i*entrySize : (i+1)*entrySize]
		first := binary.LittleEndian.Uint64(entry[32:40])
		last := binary.LittleEndian.Uint64(entry[40:48])
		if first == 0 && last == 0 {
			continue
		}
		parts = append(parts, Partition{
			Number:     int(i + 1),
			Name:       entryName(entry),
			FirstLBA:   first,
			LastLBA:    last,
			NumSectors: last - first + 1,
		})
	}
	return parts, nil
}

// entryName decodes the UTF-16LE partition name, stopping at the first
// NUL code unit.
func entryName(entry []byte) string {
	raw := entry[nameOffset : nameOffset+nameBytesLen]
	units := make([]uint16, 0, nameBytesLen/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := binary.LittleEndian.Uint16(raw[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
