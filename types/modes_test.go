package types_test

import (
	"testing"

	"github.com/piclone-io/piclone-sdk/types"
)

func TestNormalizeCloneMode(t *testing.T) {
	tests := []struct {
		in   string
		want types.CloneMode
	}{
		{"smart", types.CloneSmart},
		{"exact", types.CloneExact},
		{"raw", types.CloneExact},
		{"RAW", types.CloneExact},
		{"verify", types.CloneVerify},
		{"", types.CloneSmart},
		{"bogus", types.CloneSmart},
	}
	for _, tt := range tests {
		if got := types.NormalizeCloneMode(tt.in); got != tt.want {
			t.Errorf("NormalizeCloneMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeEraseMode(t *testing.T) {
	for _, mode := range []string{"quick", "zero", "discard", "secure", "QUICK"} {
		if _, err := types.NormalizeEraseMode(mode); err != nil {
			t.Errorf("NormalizeEraseMode(%q): unexpected error: %v", mode, err)
		}
	}
	if _, err := types.NormalizeEraseMode("paranoid"); err == nil {
		t.Error("NormalizeEraseMode: unknown mode must not default to anything destructive")
	}
}

func TestNormalizeTableLabel(t *testing.T) {
	tests := []struct {
		in   string
		want types.TableLabel
	}{
		{"gpt", types.TableGPT},
		{"dos", types.TableDOS},
		{"mbr", types.TableDOS},
		{"msdos", types.TableDOS},
	}
	for _, tt := range tests {
		got, err := types.NormalizeTableLabel(tt.in)
		if err != nil {
			t.Errorf("NormalizeTableLabel(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeTableLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := types.NormalizeTableLabel("sun"); err == nil {
		t.Error("NormalizeTableLabel: unsupported label must fail")
	}
}
