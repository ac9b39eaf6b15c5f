// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IndexingTask represents one extracted document waiting to be chunked,
// embedded and written to the vector index.
type IndexingTask struct {
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	Content  string `json:"content"`
	Size     int64  `json:"size"`
}
