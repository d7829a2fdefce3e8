package config

// Config holds all settings for the coordination engine and its CLI.
type Config struct {
	// Log Config
	LogLevel  int    `json:"log_level"`  // zerolog level, e.g. 0 = debug, 1 = info
	LogFormat string `json:"log_format"` // "json" or "console"

	// Data directory for the sqlite store (default: ~/.enchanter)
	DataDir string `json:"data_dir"`

	// Remote configuration tracker endpoint
	TrackerURL string `json:"tracker_url"`

	// TrackerTimeoutSeconds bounds each tracker round trip (default: 15)
	TrackerTimeoutSeconds int `json:"tracker_timeout_seconds"`

	// ReceiptLookbackBlocks bounds the event-log scan window when
	// classifying execution status (default: 500000). Actions older than
	// the window may classify as replaced; this is a deliberate
	// precision/cost trade-off.
	ReceiptLookbackBlocks uint64 `json:"receipt_lookback_blocks"`

	// Networks maps a decimal chain ID to its per-network settings
	Networks map[string]NetworkConfig `json:"networks"`
}

// NetworkConfig holds per-network settings.
type NetworkConfig struct {
	Name    string   `json:"name,omitempty"`
	RPCURLs []string `json:"rpc_urls"` // tried in order with failover
}
