// Package tray implements an X11 system tray manager.
//
// A Manager owns the per-screen _NET_SYSTEM_TRAY_S<n> selection, accepts
// docking requests from tray clients following the XEMBED convention,
// reparents their icon windows into a single container window and keeps
// geometry, mapping state and selection ownership consistent while window
// system events arrive.
//
// The manager is single-threaded: every event is handed to [Manager.Dispatch]
// from one goroutine, in arrival order. Window operations go through the
// [Conn] facade and the hosting bar is reached through [Host].
package tray
