package tray

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
)

// Alignment is the horizontal anchoring of the container at its origin.
type Alignment int

// Supported alignments.
const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

func (a Alignment) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return fmt.Sprintf("Alignment(%d)", int(a))
	}
}

// ParseAlignment parses "left", "center" or "right" (case insensitive).
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "":
		return AlignLeft, nil
	case "center", "centre", "middle":
		return AlignCenter, nil
	case "right":
		return AlignRight, nil
	default:
		return AlignLeft, fmt.Errorf("invalid tray alignment %q", s)
	}
}

// Settings are the tray settings supplied once at bootstrap.
type Settings struct {
	// Width is the initial container width. Zero means one slot wide.
	Width uint16
	// Height is the container height, usually the bar height.
	Height     uint16
	IconWidth  uint16
	IconHeight uint16
	Spacing    uint16
	Align      Alignment
	OrigX      int16
	OrigY      int16
	// Background is 0xRRGGBB. Zero disables parent-relative client backgrounds.
	Background uint32
	// Sibling is the window the container is stacked directly above.
	Sibling xproto.Window
}

// ContainerWidth returns the container width for the given number of mapped
// clients.
func ContainerWidth(s Settings, mapped int) uint16 {
	return s.Spacing + uint16(mapped)*(s.IconWidth+s.Spacing)
}

// ContainerX returns the container x position for the given number of mapped
// clients and container width.
func ContainerX(s Settings, mapped int, width uint16) int16 {
	x := int(s.OrigX)
	switch s.Align {
	case AlignRight:
		x -= mapped*int(s.IconWidth+s.Spacing) + int(s.Spacing)
	case AlignCenter:
		x -= int(width)/2 - int(s.IconWidth)/2
	case AlignLeft:
	}
	return int16(x)
}

// ContainerRect returns the container geometry for the given number of mapped
// clients.
func ContainerRect(s Settings, mapped int) xproto.Rectangle {
	w := ContainerWidth(s, mapped)
	return xproto.Rectangle{
		X:      ContainerX(s, mapped, w),
		Y:      s.OrigY,
		Width:  w,
		Height: s.Height,
	}
}

// InitialRect returns the geometry the container is created with.
func InitialRect(s Settings) xproto.Rectangle {
	w := s.Width
	if w == 0 {
		w = s.IconWidth + 2*s.Spacing
	}
	return xproto.Rectangle{
		X:      ContainerX(s, 0, 0),
		Y:      s.OrigY,
		Width:  w,
		Height: s.Height,
	}
}

// SlotX returns the x offset, inside the container, of the k-th slot.
func SlotX(s Settings, k int) int16 {
	return int16(int(s.Spacing) + k*int(s.IconWidth+s.Spacing))
}

// ClientY returns the y offset of every client inside the container.
func ClientY(s Settings) int16 {
	if s.IconHeight >= s.Height {
		return 0
	}
	return int16((s.Height - s.IconHeight) / 2)
}
