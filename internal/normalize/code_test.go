package normalize

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		suffixWidth int
		want        Code
		wantErr     bool
	}{
		{name: "barangay pcode", raw: "PH0102801001", suffixWidth: 0, want: 102801001},
		{name: "region pcode", raw: "PH01", suffixWidth: 8, want: 100000000},
		{name: "province pcode", raw: "PH01028", suffixWidth: 5, want: 102800000},
		{name: "single P prefix", raw: "P0102801", suffixWidth: 3, want: 102801000},
		{name: "no prefix", raw: "1908707001", suffixWidth: 0, want: 1908707001},
		{name: "surrounding whitespace", raw: "  PH1908718  ", suffixWidth: 3, want: 1908718000},
		{name: "over width is truncated", raw: "PH190871800199", suffixWidth: 0, want: 1908718001},
		{name: "letters", raw: "PHabc", suffixWidth: 0, wantErr: true},
		{name: "empty", raw: "", suffixWidth: 0, wantErr: true},
		{name: "prefix only", raw: "PH", suffixWidth: 0, wantErr: true},
		{name: "embedded dash", raw: "PH19-087", suffixWidth: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.suffixWidth)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) expected error, got %v", tt.raw, got)
				}
				if !errors.Is(err, ErrInvalidCodeFormat) {
					t.Errorf("Normalize(%q) error %v is not ErrInvalidCodeFormat", tt.raw, err)
				}
				if got != Sentinel {
					t.Errorf("Normalize(%q) = %v on error, want sentinel", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		raw     string
		want    Code
		wantErr bool
	}{
		{"1908705001", 1908705001, false},
		{"102801001.0", 102801001, false},
		{" 1303900000 ", 1303900000, false},
		{"", 0, true},
		{"n/a", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseCode(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCode(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCode(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAncestorCode(t *testing.T) {
	code := Code(1908705001)
	tests := []struct {
		tier Tier
		want Code
	}{
		{TierRegion, 1900000000},
		{TierProvince, 1908700000},
		{TierMunicipality, 1908705000},
		{TierBarangay, 1908705001},
		{TierNone, Sentinel},
	}

	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			if got := AncestorCode(code, tt.tier); got != tt.want {
				t.Errorf("AncestorCode(%d, %v) = %d, want %d", code, tt.tier, got, tt.want)
			}
		})
	}
}

func TestTierOf(t *testing.T) {
	tests := []struct {
		code Code
		want Tier
	}{
		{1908705001, TierBarangay},
		{1908705000, TierMunicipality},
		{1908700000, TierProvince},
		{1900000000, TierRegion},
		{102801001, TierBarangay},
		{Sentinel, TierNone},
	}

	for _, tt := range tests {
		t.Run(Format(tt.code), func(t *testing.T) {
			if got := TierOf(tt.code); got != tt.want {
				t.Errorf("TierOf(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsDescendant(t *testing.T) {
	tests := []struct {
		name string
		a, b Code
		want bool
	}{
		{"barangay under municipality", 1908718005, 1908718000, true},
		{"barangay under province", 1908718005, 1908700000, true},
		{"municipality under region", 1908718000, 1900000000, true},
		{"same code", 1908718000, 1908718000, false},
		{"sibling municipality", 1908719005, 1908718000, false},
		{"barangay is a leaf", 1908718005, 1908718001, false},
		{"sentinel parent", 1908718005, Sentinel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDescendant(tt.a, tt.b); got != tt.want {
				t.Errorf("IsDescendant(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestReplaceGroup(t *testing.T) {
	tests := []struct {
		code  Code
		tier  Tier
		value int64
		want  Code
	}{
		{1909901000, TierProvince, 999, 1999901000},
		{1909903005, TierProvince, 999, 1999903005},
		{1908705001, TierMunicipality, 7, 1908707001},
		{1908705001, TierRegion, 12, 1208705001},
	}

	for _, tt := range tests {
		t.Run(Format(tt.code), func(t *testing.T) {
			if got := ReplaceGroup(tt.code, tt.tier, tt.value); got != tt.want {
				t.Errorf("ReplaceGroup(%d, %v, %d) = %d, want %d", tt.code, tt.tier, tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	codes := []Code{102801001, 1908705001, 1999901000, 1380600000, 1300000000, 990101000}

	for _, code := range codes {
		t.Run(Format(code), func(t *testing.T) {
			got, err := Normalize(Format(code), 0)
			if err != nil {
				t.Fatalf("Normalize(Format(%d)) error: %v", code, err)
			}
			if got != code {
				t.Errorf("Normalize(Format(%d)) = %d", code, got)
			}

			// Every ancestor survives the pcode form used by geometry sources
			for tier := TierRegion; tier <= TierBarangay; tier++ {
				ancestor := AncestorCode(code, tier)
				back, err := Normalize(FormatPCode(ancestor, tier), SuffixWidth(tier))
				if err != nil {
					t.Fatalf("Normalize(FormatPCode(%d, %v)) error: %v", ancestor, tier, err)
				}
				if back != ancestor {
					t.Errorf("pcode round trip at %v: got %d, want %d", tier, back, ancestor)
				}
			}
		})
	}
}

func TestFormatPCode(t *testing.T) {
	if got := FormatPCode(102801000, TierMunicipality); got != "PH0102801" {
		t.Errorf("FormatPCode municipality = %s", got)
	}
	if got := FormatPCode(1900000000, TierRegion); got != "PH19" {
		t.Errorf("FormatPCode region = %s", got)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
		ok   bool
	}{
		{"barangay", TierBarangay, true},
		{" Province ", TierProvince, true},
		{"3", TierMunicipality, true},
		{"adm1", TierRegion, true},
		{"adm0", TierNone, false},
		{"county", TierNone, false},
	}
	for _, tt := range tests {
		got, ok := ParseTier(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTier(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
