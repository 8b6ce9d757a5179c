// Package preview renders the tray layout for a set of settings into a PNG,
// so alignment and spacing can be checked without an X server.
//
// The container is drawn as a lighter band over the bar background and each
// slot as a colored box numbered in docking order (1 is the oldest client).
package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/codeGROOVE-dev/traybar/internal/tray"
)

const maxScale = 8

// Options control the rendered image.
type Options struct {
	// Width is the canvas width. Zero fits the container plus spacing.
	Width int
	// Clients is the number of mapped clients to lay out.
	Clients int
	// Scale enlarges the image by an integer factor (1 to 8).
	Scale int
}

// Layout returns the container geometry and the absolute geometry of each
// slot, slot 0 first.
func Layout(s tray.Settings, clients int) (container xproto.Rectangle, slots []xproto.Rectangle) {
	container = tray.ContainerRect(s, clients)
	y := container.Y + tray.ClientY(s)
	for k := range clients {
		slots = append(slots, xproto.Rectangle{
			X:      container.X + tray.SlotX(s, k),
			Y:      y,
			Width:  s.IconWidth,
			Height: s.IconHeight,
		})
	}
	return container, slots
}

// Render draws the layout and returns it PNG encoded.
func Render(s tray.Settings, opts Options) ([]byte, error) {
	if opts.Clients < 0 {
		return nil, fmt.Errorf("invalid client count %d", opts.Clients)
	}
	scale := min(max(opts.Scale, 1), maxScale)

	container, slots := Layout(s, opts.Clients)
	width := opts.Width
	if width <= 0 {
		width = max(int(container.X)+int(container.Width)+int(s.Spacing), 1)
	}
	height := max(int(s.OrigY)+int(s.Height), 1)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := rgb(s.Background)
	fill(img, img.Bounds(), bg)
	fill(img, rect(container), bg.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.15))

	for k, r := range slots {
		// Golden-angle hue steps.
		c := colorful.Hsv(math.Mod(float64(k)*137.5, 360), 0.55, 0.8)
		fill(img, rect(r), c)
		drawLabel(img, strconv.Itoa(opts.Clients-k), rect(r))
	}

	var out image.Image = img
	if scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func rgb(v uint32) colorful.Color {
	return colorful.Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
	}
}

func rect(r xproto.Rectangle) image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X)+int(r.Width), int(r.Y)+int(r.Height))
}

func fill(img *image.RGBA, r image.Rectangle, c colorful.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c.Clamped()), image.Point{}, draw.Src)
}

var monoBold = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gomonobold.TTF)
})

// drawLabel centers text in r. Slots too small for text stay unlabelled.
func drawLabel(img *image.RGBA, text string, r image.Rectangle) {
	if r.Dy() < 8 {
		return
	}
	f, err := monoBold()
	if err != nil {
		return
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size: float64(r.Dy()) * 0.7,
		DPI:  72,
	})
	if err != nil {
		return
	}
	defer face.Close() //nolint:errcheck // nothing to do about it

	bounds, advance := font.BoundString(face, text)
	cx, cy := r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(cx - advance.Ceil()/2),
			Y: fixed.I(cy) - (bounds.Max.Y+bounds.Min.Y)/2,
		},
	}
	d.DrawString(text)
}
