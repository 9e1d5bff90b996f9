//go:build darwin

package peerlink

// FIONREAD, _IOR('f', 127, int); x/sys/unix does not export it for darwin
const inqRequest = 0x4004667f
