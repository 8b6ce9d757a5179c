package preview

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
)

var settings = tray.Settings{
	Height:     24,
	IconWidth:  16,
	IconHeight: 16,
	Spacing:    2,
	Align:      tray.AlignRight,
	OrigX:      200,
	Background: 0x202020,
}

func TestLayout(t *testing.T) {
	container, slots := Layout(settings, 3)
	if container.X != 200-(3*18+2) || container.Width != 56 {
		t.Errorf("container = %+v, want x %d width 56", container, 200-(3*18+2))
	}
	if len(slots) != 3 {
		t.Fatalf("len(slots) = %d, want 3", len(slots))
	}
	for k, s := range slots {
		if want := container.X + tray.SlotX(settings, k); s.X != want {
			t.Errorf("slot %d x = %d, want %d", k, s.X, want)
		}
		if s.Y != 4 || s.Width != 16 || s.Height != 16 {
			t.Errorf("slot %d = %+v", k, s)
		}
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantWidth  int
		wantHeight int
	}{
		{"fit", Options{Clients: 2}, 200 + 2, 24},
		{"explicit width", Options{Clients: 2, Width: 320}, 320, 24},
		{"scaled", Options{Clients: 1, Width: 300, Scale: 3}, 900, 72},
		{"scale clamped", Options{Width: 10, Scale: 100}, 80, 192},
		{"empty", Options{}, 202, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Render(settings, tt.opts)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			b := img.Bounds()
			if b.Dx() != tt.wantWidth || b.Dy() != tt.wantHeight {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantWidth, tt.wantHeight)
			}
		})
	}
}

func TestRenderColors(t *testing.T) {
	data, err := Render(settings, Options{Clients: 1})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 0x20 || g>>8 != 0x20 || b>>8 != 0x20 {
		t.Errorf("background pixel = %x %x %x, want 20 20 20", r>>8, g>>8, b>>8)
	}
	container, _ := Layout(settings, 1)
	r2, _, _, _ := img.At(int(container.X), 0).RGBA()
	if r2 <= r {
		t.Errorf("container not lighter than background: %x <= %x", r2>>8, r>>8)
	}
}

func TestRenderRejectsNegativeClients(t *testing.T) {
	if _, err := Render(settings, Options{Clients: -1}); err == nil {
		t.Error("Render() with -1 clients = nil error")
	}
}
