// Package ipc provides the local socket that CLI tools (copy/paste/status)
// use to talk to a running clipmesh node instead of opening their own mesh
// connections. The channel carries the same newline-JSON messages as the
// mesh wire, unencrypted — it never leaves the machine.
package ipc

import "net"

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/clipmesh.sock, falling back to $TMPDIR
//   - macOS:   $TMPDIR/clipmesh.sock
//   - Windows: \\.\pipe\clipmesh
//
// Override with $CLIPMESH_SOCKET on Unix.
func SocketPath() string {
	return socketPath()
}

// IsRunning reports whether a clipmesh node appears to be listening on the
// IPC socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(socketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a net.Listener on the IPC socket path.
func Listen() (net.Listener, error) {
	return listenIPC(socketPath())
}

// Dial connects to a listening clipmesh node.
func Dial() (net.Conn, error) {
	return dialIPC(socketPath())
}
