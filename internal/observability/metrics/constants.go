// Package metrics provides custom Prometheus metrics for the pysdr components.
package metrics

import "time"

// Namespace prefixes every metric name
const Namespace = "pysdr"

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusDropped = "dropped"
)

// Operation label values
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpQuery  = "query"
	OpDelete = "delete"
)

// ShutdownTimeout bounds graceful HTTP shutdown
const ShutdownTimeout = 5 * time.Second
