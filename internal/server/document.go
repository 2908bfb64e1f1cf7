package server

import "github.com/conceptforge/conceptforge/internal/metaproject"

// ServerDocument is the locator returned to clients for connecting to a
// project: the advertised server address, the optional secondary port, and
// the location of the project's history file.
type ServerDocument struct {
	ServerURI       string `json:"server_uri"`
	SecondaryPort   int    `json:"secondary_port,omitempty"`
	HistoryFilePath string `json:"history_file_path"`
}

func newServerDocument(host metaproject.Host, historyFilePath string) ServerDocument {
	return ServerDocument{
		ServerURI:       host.URI,
		SecondaryPort:   host.SecondaryPort,
		HistoryFilePath: historyFilePath,
	}
}
