// Package model 定义了知识库服务的领域模型。
package model

import (
	"path/filepath"
	"strings"
)

// FileType 表示已入库文档的来源类型。
type FileType string

const (
	FileTypeTxt   FileType = "txt"
	FileTypePDF   FileType = "pdf"
	FileTypeDoc   FileType = "doc"
	FileTypeDocx  FileType = "docx"
	FileTypePpt   FileType = "ppt"
	FileTypePptx  FileType = "pptx"
	FileTypeEmail FileType = "email"
)

// extensionTypes 是可上传文件后缀到文档类型的映射。
var extensionTypes = map[string]FileType{
	".txt":  FileTypeTxt,
	".pdf":  FileTypePDF,
	".doc":  FileTypeDoc,
	".docx": FileTypeDocx,
	".ppt":  FileTypePpt,
	".pptx": FileTypePptx,
	".eml":  FileTypeEmail,
	".msg":  FileTypeEmail,
}

// FileTypeFromName 根据文件名后缀（不区分大小写）推断文档类型。
func FileTypeFromName(fileName string) (FileType, bool) {
	t, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]
	return t, ok
}

// Icon 返回列表和上下文中展示用的图标。
func (t FileType) Icon() string {
	if t == FileTypeEmail {
		return "📧"
	}
	return "📄"
}

// Document 是一次成功上传后生成的文档，入库后不可变。
type Document struct {
	Content  string   `json:"content"`
	Filename string   `json:"filename"`
	FileType FileType `json:"file_type"`
	Size     int64    `json:"size"`
}
