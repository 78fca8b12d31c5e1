package qrcodec

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c := New(512)
	payloads := []string{
		"hello world",
		"tel:+15551234567",
		`WIFI:T:WPA;S:Home\;Net;P:secret;;`,
		"https://wa.me/15551234567?text=hi%20there",
	}
	for _, p := range payloads {
		data, err := c.Encode(p)
		if err != nil {
			t.Fatalf("encode %q: %v", p, err)
		}
		got, err := c.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %q: %v", p, err)
		}
		if len(got) != 1 || got[0] != p {
			t.Fatalf("round trip = %v, want %q", got, p)
		}
	}
}

func TestEncodeSize(t *testing.T) {
	data, err := New(0).Encode("x")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if cfg.Width != DefaultSize || cfg.Height != DefaultSize {
		t.Fatalf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeEmpty(t *testing.T) {
	if _, err := New(0).Encode(""); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeBlankImageIsEmpty(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "blank.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := New(0).DecodeFile(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestDecodeRejectsNonImage(t *testing.T) {
	if _, err := New(0).Decode(bytes.NewReader([]byte("plain text"))); err == nil {
		t.Fatal("expected image error")
	}
}

func TestDecodeReturnsEverySymbol(t *testing.T) {
	c := New(300)
	want := map[string]bool{"first-symbol": true, "second-symbol": true}

	canvas := image.NewGray(image.Rect(0, 0, 700, 340))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xff
	}
	x := 20
	for text := range want {
		data, err := c.Encode(text)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		sym, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("png: %v", err)
		}
		draw.Draw(canvas, image.Rect(x, 20, x+300, 320), sym, image.Point{}, draw.Src)
		x += 360
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		t.Fatal(err)
	}

	got, err := c.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want both symbols", got)
	}
	for _, g := range got {
		if !want[g] {
			t.Fatalf("unexpected symbol %q in %v", g, got)
		}
		delete(want, g)
	}
}
