package admin

import (
	"time"

	"certhub/internal/certificate/models"
	"certhub/internal/platform/database"
)

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	models.Stats
	DatabaseAvailable bool            `json:"databaseAvailable"`
	Connection        database.Status `json:"connection"`
}

// FileInfo describes one stored upload.
type FileInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	Modified  time.Time `json:"modified"`
	Age       string    `json:"age"`
	Stale     bool      `json:"stale"`
}

// FileStatusResponse is the body of GET /api/file-status.
type FileStatusResponse struct {
	Directory      string     `json:"directory"`
	Exists         bool       `json:"exists"`
	Files          []FileInfo `json:"files"`
	TotalFiles     int        `json:"totalFiles"`
	TotalSize      int64      `json:"totalSize"`
	TotalSizeHuman string     `json:"totalSizeHuman"`
	StaleFiles     int        `json:"staleFiles"`
	MaxAge         string     `json:"maxAge"`
}

// DBCheckResponse is the body of GET /api/test-db-connection.
type DBCheckResponse struct {
	LatencyMs  float64         `json:"latencyMs,omitempty"`
	Reconnect  bool            `json:"reconnectScheduled,omitempty"`
	Connection database.Status `json:"connection"`
}

// NetworkCheckResponse is the body of GET /api/test-network.
type NetworkCheckResponse struct {
	Target    string   `json:"target"`
	Host      string   `json:"host"`
	Addresses []string `json:"addresses,omitempty"`
	DNSMs     float64  `json:"dnsMs"`
	DNSError  string   `json:"dnsError,omitempty"`
	Reachable bool     `json:"reachable"`
	DialMs    float64  `json:"dialMs"`
	DialError string   `json:"dialError,omitempty"`
}
