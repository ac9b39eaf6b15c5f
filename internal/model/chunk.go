package model

// EsChunk 定义了存储在 Elasticsearch 向量索引中的分块结构。
type EsChunk struct {
	ChunkID      string    `json:"chunk_id"` // 形如 {filename}_{index}_{uuid8}
	Filename     string    `json:"filename"`
	FileType     FileType  `json:"file_type"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// ChunkMatch 是向量索引返回的一条近邻结果。
type ChunkMatch struct {
	ChunkID    string  `json:"chunk_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
