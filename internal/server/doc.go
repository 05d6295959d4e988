// Package server implements the realtime core of Parley: the hub that owns
// the set of live WebSocket connections and the presence ledger, the
// per-connection read/write pumps, and the HTTP surface that authenticates
// users and upgrades their connections.
package server
