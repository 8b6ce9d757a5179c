package tray

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// XEMBED protocol constants.
const (
	XEmbedVersion = 0
	// XEmbedMapped is the _XEMBED_INFO flag bit asking to be mapped.
	XEmbedMapped = 1 << 0

	xembedEmbeddedNotify = 0
)

// EmbedInfo is the _XEMBED_INFO property of a client window.
type EmbedInfo struct {
	Version uint32
	Flags   uint32
}

// WantsMapped reports whether the client asks to be mapped.
func (e EmbedInfo) WantsMapped() bool {
	return e.Flags&XEmbedMapped == XEmbedMapped
}

// Encode returns the two 32-bit words of the property in wire order.
func (e EmbedInfo) Encode() []byte {
	buf := make([]byte, 8)
	xgb.Put32(buf, e.Version)
	xgb.Put32(buf[4:], e.Flags)
	return buf
}

// DecodeEmbedInfo decodes an _XEMBED_INFO property reply.
func DecodeEmbedInfo(reply *xproto.GetPropertyReply) (EmbedInfo, error) {
	if reply == nil || reply.Format != 32 || reply.ValueLen < 2 || len(reply.Value) < 8 {
		return EmbedInfo{}, ErrNoEmbedInfo
	}
	return EmbedInfo{
		Version: xgb.Get32(reply.Value),
		Flags:   xgb.Get32(reply.Value[4:]),
	}, nil
}

func queryEmbedInfo(conn Conn, infoAtom xproto.Atom, win xproto.Window) (EmbedInfo, error) {
	reply, err := conn.GetProperty(win, infoAtom)
	if err != nil {
		return EmbedInfo{}, windowErr(win, "get _XEMBED_INFO", err)
	}
	info, err := DecodeEmbedInfo(reply)
	if err != nil {
		return EmbedInfo{}, fmt.Errorf("window %s: %w", windowID(win), err)
	}
	return info, nil
}

// negotiatedVersion is the lower of the client's and our protocol version.
func negotiatedVersion(client uint32) uint32 {
	return min(client, XEmbedVersion)
}

// notifyEmbedded tells the client it now lives inside container.
func notifyEmbedded(conn Conn, xembed xproto.Atom, client, container xproto.Window, version uint32) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: client,
		Type:   xembed,
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(xproto.TimeCurrentTime),
			xembedEmbeddedNotify,
			0,
			uint32(container),
			version,
		}),
	}
	return windowErr(client, "send XEMBED_EMBEDDED_NOTIFY", conn.SendEvent(client, xproto.EventMaskNoEvent, ev.Bytes()))
}

// notifyUnembedded hands the client back to the root window so it can act
// as a normal top-level again. Both steps are attempted even if the first
// fails since the window may already be half gone.
func notifyUnembedded(conn Conn, client, root xproto.Window) error {
	return errors.Join(
		windowErr(client, "unmap", conn.UnmapWindow(client)),
		windowErr(client, "reparent to root", conn.ReparentWindow(client, root, 0, 0)),
	)
}

// ensureState maps or unmaps the client so its window matches the mapped
// bit of its XEMBED flags.
func ensureState(conn Conn, c Client) error {
	switch {
	case !c.Mapped && c.Info.WantsMapped():
		return windowErr(c.Window, "map", conn.MapWindow(c.Window))
	case c.Mapped && !c.Info.WantsMapped():
		return windowErr(c.Window, "unmap", conn.UnmapWindow(c.Window))
	default:
		return nil
	}
}
