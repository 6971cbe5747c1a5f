// Package database loads transformed price tables into the relational store.
//
// Connections come from a ConnectionProvider chosen once per process:
// DirectProvider for hosts inside the database network and TunnelProvider,
// which forwards a local port over SSH to a bastion, everywhere else. Every
// Conn must be closed; closing releases the database handle first and the
// tunnel after it.
//
// Loader appends rows with batched multi-row INSERT statements inside a
// single transaction. The target table must already exist.
package database
