package gpt

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

// writeGPTImage lays out a minimal GPT: protective MBR sector, header at
// LBA 1 pointing at entries from LBA 2.
func writeGPTImage(t *testing.T, names []string) string {
	t.Helper()

	const entrySize = 128
	img := make([]byte, 512*4)

	hdr := img[512:1024]
	copy(hdr[0:8], "EFI PART")
	binary.LittleEndian.PutUint64(hdr[72:80], 2)                    // entries start at LBA 2
	binary.LittleEndian.PutUint32(hdr[80:84], uint32(len(names)+1)) // one extra empty slot
	binary.LittleEndian.PutUint32(hdr[84:88], entrySize)

	for i, name := range names {
		entry := img[2*512+i*entrySize:]
		binary.LittleEndian.PutUint64(entry[32:40], uint64(2048+i*1000)) // first LBA
		binary.LittleEndian.PutUint64(entry[40:48], uint64(2048+i*1000+999))
		for j, u := range utf16.Encode([]rune(name)) {
			binary.LittleEndian.PutUint16(entry[56+2*j:], u)
		}
	}

	path := filepath.Join(t.TempDir(), "disk.img")
	if err := os.WriteFile(path, img, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPartitions(t *testing.T) {
	path := writeGPTImage(t, []string{"boot", "rootfs"})

	parts, err := ReadPartitions(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d partitions, want 2", len(parts))
	}
	if parts[0].Name != "boot" || parts[1].Name != "rootfs" {
		t.Errorf("got names %q, %q", parts[0].Name, parts[1].Name)
	}
	if parts[0].Number != 1 || parts[1].Number != 2 {
		t.Errorf("got numbers %d, %d", parts[0].Number, parts[1].Number)
	}
	if parts[0].FirstLBA != 2048 {
		t.Errorf("got first LBA %d, want 2048", parts[0].FirstLBA)
	}
	if parts[0].NumSectors != 1000 {
		t.Errorf("got %d sectors, want 1000", parts[0].NumSectors)
	}
	if parts[0].SizeBytes() != 1000*512 {
		t.Errorf("got %d bytes, want %d", parts[0].SizeBytes(), 1000*512)
	}
}

func TestReadPartitionsNoSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.img")
	if err := os.WriteFile(path, make([]byte, 512*4), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPartitions(path); err == nil {
		t.Error("expected an error for a device without a GPT signature")
	}
}

func TestReadPartitionsMissingDevice(t *testing.T) {
	if _, err := ReadPartitions("/nonexistent/device"); err == nil {
		t.Error("expected an error for a missing device")
	}
}
