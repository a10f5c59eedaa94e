//go:build !linux || !cgo

package uring

// Sfence and Mfence are no-ops on platforms or builds where the cgo
// asm fences in barrier.go aren't available. The ring only runs on
// Linux, so the pure-Go minimal ring is the one path that actually
// needs fencing; everywhere else this package is compiled just to
// satisfy the Ring interface, never to submit real SQEs.
func Sfence() {}

func Mfence() {}
