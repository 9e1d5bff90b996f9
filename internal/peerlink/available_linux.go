//go:build linux

package peerlink

import "golang.org/x/sys/unix"

const inqRequest = unix.TIOCINQ
