package main

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/codeGROOVE-dev/traybar/internal/bar"
	"github.com/codeGROOVE-dev/traybar/internal/tray"
)

const (
	defaultBarHeight  = 24
	defaultIconSize   = 16
	defaultSpacing    = 2
	defaultBackground = "#222222"
	defaultBarName    = "traybar"
	maxDimension      = 4096
)

// Settings is the persisted settings file.
type Settings struct {
	Bar  BarSettings  `json:"bar"`
	Tray TraySettings `json:"tray"`
}

// BarSettings describe the bar window.
type BarSettings struct {
	Background string `json:"background"`
	Name       string `json:"name"`
	Height     int    `json:"height"`
	// Width of zero spans the screen.
	Width  int  `json:"width"`
	Bottom bool `json:"bottom"`
}

// TraySettings describe the tray area inside the bar.
type TraySettings struct {
	Align    string `json:"align"`
	IconSize int    `json:"icon_size"`
	Spacing  int    `json:"spacing"`
	// OffsetX is the distance from the bar edge the tray is aligned to.
	OffsetX int `json:"offset_x"`
}

func defaultSettings() Settings {
	return Settings{
		Bar: BarSettings{
			Background: defaultBackground,
			Name:       defaultBarName,
			Height:     defaultBarHeight,
		},
		Tray: TraySettings{
			Align:    tray.AlignRight.String(),
			IconSize: defaultIconSize,
			Spacing:  defaultSpacing,
		},
	}
}

// normalize clamps out of range values to defaults, logging each change.
func (s *Settings) normalize(log *slog.Logger) {
	clamp := func(name string, v *int, lo, def int) {
		if *v < lo || *v > maxDimension {
			log.Warn("Invalid setting, using default", "setting", name, "invalid", *v, "default", def)
			*v = def
		}
	}
	clamp("bar.height", &s.Bar.Height, 1, defaultBarHeight)
	clamp("bar.width", &s.Bar.Width, 0, 0)
	clamp("tray.icon_size", &s.Tray.IconSize, 1, defaultIconSize)
	clamp("tray.spacing", &s.Tray.Spacing, 0, defaultSpacing)
	clamp("tray.offset_x", &s.Tray.OffsetX, 0, 0)

	if s.Tray.IconSize > s.Bar.Height {
		log.Warn("Icon size exceeds bar height, shrinking icons", "icon_size", s.Tray.IconSize, "height", s.Bar.Height)
		s.Tray.IconSize = s.Bar.Height
	}
	if _, err := parseColor(s.Bar.Background); err != nil {
		log.Warn("Invalid setting, using default", "setting", "bar.background", "error", err, "default", defaultBackground)
		s.Bar.Background = defaultBackground
	}
	if _, err := tray.ParseAlignment(s.Tray.Align); err != nil {
		log.Warn("Invalid setting, using default", "setting", "tray.align", "error", err, "default", tray.AlignRight)
		s.Tray.Align = tray.AlignRight.String()
	}
	if s.Bar.Name == "" {
		s.Bar.Name = defaultBarName
	}
}

// parseColor parses "#rrggbb" into 0xRRGGBB.
func parseColor(s string) (uint32, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b), nil
}

// barConfig derives the bar window configuration.
func (s Settings) barConfig() (bar.Config, error) {
	bg, err := parseColor(s.Bar.Background)
	if err != nil {
		return bar.Config{}, err
	}
	return bar.Config{
		Name:       s.Bar.Name,
		Width:      uint16(s.Bar.Width),  //nolint:gosec // clamped by normalize
		Height:     uint16(s.Bar.Height), //nolint:gosec // clamped by normalize
		Background: bg,
		Bottom:     s.Bar.Bottom,
		IconSize:   uint16(s.Tray.IconSize), //nolint:gosec // clamped by normalize
		Spacing:    uint16(s.Tray.Spacing),  //nolint:gosec // clamped by normalize
	}, nil
}

// traySettings derives the tray manager settings for a bar at rect.
func (s Settings) traySettings(rect xproto.Rectangle, sibling xproto.Window) (tray.Settings, error) {
	align, err := tray.ParseAlignment(s.Tray.Align)
	if err != nil {
		return tray.Settings{}, err
	}
	bg, err := parseColor(s.Bar.Background)
	if err != nil {
		return tray.Settings{}, err
	}

	x := int(rect.X)
	switch align {
	case tray.AlignRight:
		x += int(rect.Width) - s.Tray.OffsetX
	case tray.AlignCenter:
		x += int(rect.Width)/2 + s.Tray.OffsetX
	case tray.AlignLeft:
		x += s.Tray.OffsetX
	}

	icon := uint16(s.Tray.IconSize) //nolint:gosec // clamped by normalize
	return tray.Settings{
		Height:     rect.Height,
		IconWidth:  icon,
		IconHeight: icon,
		Spacing:    uint16(s.Tray.Spacing), //nolint:gosec // clamped by normalize
		Align:      align,
		OrigX:      int16(x), //nolint:gosec // within screen bounds
		OrigY:      rect.Y,
		Background: bg,
		Sibling:    sibling,
	}, nil
}
