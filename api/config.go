// Package api provides an HTTP API server for inspecting and driving a
// narrative memory pipeline.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8088")
	ListenAddr string
}
