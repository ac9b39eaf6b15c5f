package model

import "errors"

// 服务对外暴露的错误分类，调用方通过 errors.Is 判断。
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyExtraction     = errors.New("no text extracted")
	ErrExternalService     = errors.New("external service failure")
	ErrMissingCredentials  = errors.New("missing credentials")
	ErrInvalidInput        = errors.New("invalid input")
)
