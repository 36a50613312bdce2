// Package server implements the HTTP surface of picdrop: the public gallery
// listing and asset delivery, the admin upload and delete endpoints behind
// basic auth, and the probes and metrics used by operators. It holds no
// asset state of its own; everything goes through an assets.Store.
package server
