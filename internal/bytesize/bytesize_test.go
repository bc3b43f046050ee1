package bytesize

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain sector", "4096", 4096, false},
		{"bytes suffix", "512B", 512, false},

		{"kibibytes Ki", "4Ki", 4 * KiB, false},
		{"kibibytes KiB", "4KiB", 4 * KiB, false},
		{"mebibytes", "1MiB", MiB, false},
		{"gibibytes", "1Gi", GiB, false},
		{"tebibytes", "1TiB", TiB, false},

		{"kilobytes", "1KB", KB, false},
		{"megabytes", "100M", 100 * MB, false},
		{"gigabytes", "1GB", GB, false},

		{"lowercase", "4kib", 4 * KiB, false},
		{"space between", "4 KiB", 4 * KiB, false},
		{"surrounding space", "  8Ki  ", 8 * KiB, false},
		{"float", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},

		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"invalid unit", "1Xi", 0, true},
		{"negative number", "-4KiB", 0, true},
		{"no number", "KiB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestExact(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1000"},
		{4 * KiB, "4KiB"},
		{4097, "4097"},
		{1536 * KiB, "1536KiB"},
		{64 * MiB, "64MiB"},
		{2 * GiB, "2GiB"},
	}

	for _, tt := range tests {
		if got := tt.input.Exact(); got != tt.want {
			t.Errorf("ByteSize(%d).Exact() = %q, want %q", tt.input, got, tt.want)
		}
		back, err := ParseByteSize(tt.want)
		if err != nil || back != tt.input {
			t.Errorf("ParseByteSize(%q) = %d, %v; want %d", tt.want, back, err, tt.input)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{512, "512B"},
		{4 * KiB, "4.00KiB"},
		{ByteSize(1.5 * float64(GiB)), "1.50GiB"},
	}
	for _, tt := range tests {
		if got := tt.input.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	type doc struct {
		Sector ByteSize `yaml:"sector"`
	}

	out, err := yaml.Marshal(doc{Sector: 8 * KiB})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "sector: 8KiB\n" {
		t.Errorf("yaml.Marshal = %q", out)
	}

	var in doc
	if err := yaml.Unmarshal(out, &in); err != nil {
		t.Fatal(err)
	}
	if in.Sector != 8*KiB {
		t.Errorf("round trip = %d, want %d", in.Sector, 8*KiB)
	}
}

func TestUnmarshalTextInvalid(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("invalid")); err == nil {
		t.Error("expected error")
	}
}

func TestInt(t *testing.T) {
	if got := (4 * KiB).Int(); got != 4096 {
		t.Errorf("Int() = %d", got)
	}
	if got := ByteSize(^uint64(0)).Int(); got <= 0 {
		t.Errorf("Int() of max = %d, want clamped positive", got)
	}
}
