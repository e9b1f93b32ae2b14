package fingerprint

import (
	"errors"
	"math"
	"testing"

	"github.com/haivivi/audioprint/pkg/audio/chroma"
	"github.com/haivivi/audioprint/pkg/encoding"
)

func image(t *testing.T, width int, rows ...[]float64) *chroma.FeatureImage {
	t.Helper()
	img := chroma.NewFeatureImage(width)
	for _, r := range rows {
		img.AddRow(r)
	}
	return img
}

func TestFromImage(t *testing.T) {
	img := image(t, 4,
		[]float64{0.1, 0.5, 0.2, 0.2},
		[]float64{0.4, 0.1, 0.2, 0.3},
		[]float64{0.4, 0.2, 0.1, 0.3},
	)
	fp, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage error: %v", err)
	}
	if fp.Version != Version || fp.Width != 4 || fp.Len() != 2 {
		t.Fatalf("fingerprint = %+v", fp)
	}

	want := []Item{
		// rising in 0 and 3; 0.4 and 0.3 above mean 0.25
		{Delta: 0b1001, Level: 0b1001},
		// rising in 1; 0.4 and 0.3 above mean 0.25
		{Delta: 0b0010, Level: 0b1001},
	}
	for i := range want {
		if fp.Items[i] != want[i] {
			t.Errorf("item %d = {%04b %04b}, want {%04b %04b}",
				i, fp.Items[i].Delta, fp.Items[i].Level, want[i].Delta, want[i].Level)
		}
	}
}

func TestFromImage_Edges(t *testing.T) {
	fp, err := FromImage(image(t, 12, make([]float64, 12)))
	if err != nil {
		t.Fatalf("FromImage error: %v", err)
	}
	if fp.Len() != 0 || fp.Width != 12 {
		t.Errorf("single-row image: %+v", fp)
	}

	if _, err := FromImage(chroma.NewFeatureImage(33)); !errors.Is(err, ErrWidth) {
		t.Errorf("wide image error = %v, want ErrWidth", err)
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	for _, width := range []int{1, 7, 12, 32} {
		fp := &Fingerprint{Version: Version, Width: width}
		mask := uint32(math.MaxUint32)
		if width < 32 {
			mask = 1<<width - 1
		}
		for i := range 37 {
			fp.Items = append(fp.Items, Item{
				Delta: uint32(i*2654435761) & mask,
				Level: uint32(i*40503+17) & mask,
			})
		}

		got, err := Parse(fp.String())
		if err != nil {
			t.Fatalf("width %d: Parse error: %v", width, err)
		}
		if got.Width != width || got.Len() != fp.Len() {
			t.Fatalf("width %d: got width %d len %d", width, got.Width, got.Len())
		}
		for i := range fp.Items {
			if got.Items[i] != fp.Items[i] {
				t.Fatalf("width %d item %d = %+v, want %+v", width, i, got.Items[i], fp.Items[i])
			}
		}
	}
}

func TestMarshal_Layout(t *testing.T) {
	fp := &Fingerprint{Version: 1, Width: 4, Items: []Item{{Delta: 0xa, Level: 0x5}}}
	data := fp.Marshal()
	// version, width, count (LE bit order), then 0x5<<4 | 0xa
	want := []byte{0x01, 0x04, 0x01, 0x00, 0x00, 0x00, 0x5a}
	if string(data) != string(want) {
		t.Errorf("Marshal() = %x, want %x", data, want)
	}
	if fp.String() != encoding.EncodeFingerprint(want) {
		t.Errorf("String() = %q", fp.String())
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	full := (&Fingerprint{Version: 1, Width: 12, Items: make([]Item, 10)}).Marshal()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", full[:5], ErrTruncated},
		{"missing items", full[:len(full)-3], ErrTruncated},
		{"bad version", append([]byte{9}, full[1:]...), ErrVersion},
		{"zero width", append([]byte{1, 0}, full[2:]...), ErrWidth},
		{"huge count", []byte{1, 12, 0xff, 0xff, 0xff, 0xff}, ErrTruncated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Unmarshal(tc.data); !errors.Is(err, tc.want) {
				t.Errorf("Unmarshal error = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := Parse("not a fingerprint!"); err == nil {
		t.Error("Parse accepted symbols outside the alphabet")
	}
}

func TestBitErrorRate(t *testing.T) {
	a := &Fingerprint{Version: 1, Width: 4, Items: []Item{{0xf, 0x0}, {0x1, 0x1}, {0x3, 0x3}}}
	b := &Fingerprint{Version: 1, Width: 4, Items: []Item{{0xf, 0x0}, {0x0, 0x1}}}

	ber, err := BitErrorRate(a, a)
	if err != nil || ber != 0 {
		t.Errorf("BitErrorRate(a, a) = %v, %v", ber, err)
	}

	// one differing bit out of 2 items * 2 masks * 4 bits
	ber, err = BitErrorRate(a, b)
	if err != nil {
		t.Fatalf("BitErrorRate error: %v", err)
	}
	if ber != 1.0/16 {
		t.Errorf("BitErrorRate(a, b) = %v, want %v", ber, 1.0/16)
	}

	if _, err := BitErrorRate(a, &Fingerprint{Width: 12}); !errors.Is(err, ErrWidth) {
		t.Errorf("width mismatch error = %v", err)
	}
	if _, err := BitErrorRate(a, &Fingerprint{Width: 4}); !errors.Is(err, ErrNoOverlap) {
		t.Errorf("empty comparison error = %v", err)
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(12, 16, 42)
	img := image(t, 12,
		[]float64{1, 0, 0, 0, 0.5, 0, 0, 0.2, 0, 0, 0, 0},
		[]float64{0.9, 0, 0, 0, 0.6, 0, 0, 0.1, 0, 0, 0, 0},
	)

	hash := h.Hash(img)
	if len(hash) != 4 {
		t.Fatalf("hash %q, want 4 hex chars", hash)
	}
	if h.Hash(img) != hash {
		t.Error("same image produced different hashes")
	}
	if NewHasher(12, 16, 42).Hash(img) != hash {
		t.Error("same seed produced different hashes")
	}

	// a uniform level shift does not change the profile shape
	shifted := make([]float64, 12)
	profile := []float64{0.95, 0, 0, 0, 0.55, 0, 0, 0.15, 0, 0, 0, 0}
	for i, v := range profile {
		shifted[i] = v + 0.3
	}
	if h.HashVector(shifted) != h.HashVector(profile) {
		t.Error("level shift changed the hash")
	}
	t.Logf("hash = %s", hash)
}

func TestHasher_Panics(t *testing.T) {
	for name, fn := range map[string]func(){
		"bits":      func() { NewHasher(12, 6, 1) },
		"dim":       func() { NewHasher(0, 16, 1) },
		"mismatch":  func() { NewHasher(12, 16, 1).HashVector(make([]float64, 3)) },
		"img width": func() { NewHasher(12, 16, 1).Hash(chroma.NewFeatureImage(4)) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			fn()
		})
	}
}

func TestPipelineToFingerprint(t *testing.T) {
	const rate = 11025
	samples := make([]int16, rate*3)
	for i := range samples {
		f := 220.0
		if i > len(samples)/2 {
			f = 330
		}
		samples[i] = int16(10000 * math.Sin(2*math.Pi*f*float64(i)/rate))
	}

	p := chroma.NewChromagram()
	if err := p.Reset(rate, 1); err != nil {
		t.Fatalf("Reset error: %v", err)
	}
	if err := p.Consume(samples); err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	img := p.Flush()

	fp, err := FromImage(img)
	if err != nil {
		t.Fatalf("FromImage error: %v", err)
	}
	if fp.Len() != img.NumRows()-1 {
		t.Errorf("Len() = %d, want %d", fp.Len(), img.NumRows()-1)
	}
	again, err := Parse(fp.String())
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if ber, err := BitErrorRate(fp, again); err != nil || ber != 0 {
		t.Errorf("BitErrorRate after round trip = %v, %v", ber, err)
	}
}

func TestSummarize(t *testing.T) {
	img := image(t, 4,
		[]float64{0.1, 0.5, 0.2, 0.2},
		[]float64{0.4, 0.1, 0.2, 0.3},
	)
	tests := []struct {
		name     string
		hasher   *Hasher
		wantHash bool
	}{
		{"no hasher", nil, false},
		{"matching width", NewHasher(4, DefaultHashBits, DefaultSeed), true},
		{"other width", NewHasher(12, DefaultHashBits, DefaultSeed), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Summarize(img, tt.hasher)
			if err != nil {
				t.Fatal(err)
			}
			if s.Frames != 2 || s.Width != 4 {
				t.Errorf("Summary = %+v", s)
			}
			fp, err := Parse(s.Fingerprint)
			if err != nil || fp.Len() != 1 {
				t.Fatalf("Parse(%q) = %v, %v", s.Fingerprint, fp, err)
			}
			if got := s.Hash != ""; got != tt.wantHash {
				t.Errorf("hash %q, want present=%v", s.Hash, tt.wantHash)
			}
			if tt.wantHash && len(s.Hash) != DefaultHashBits/4 {
				t.Errorf("hash length %d", len(s.Hash))
			}
		})
	}
}
