package service

import (
	"context"
	"errors"
	"knowledge-bot-go/internal/model"
	"knowledge-bot-go/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text     string
	fileType model.FileType
	err      error
}

func (f fakeExtractor) Extract(context.Context, string, []byte) (string, model.FileType, error) {
	return f.text, f.fileType, f.err
}

type fakeIndexer struct {
	indexed []model.Document
	resets  int
	err     error
}

func (f *fakeIndexer) Index(_ context.Context, doc model.Document) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeIndexer) Reset(context.Context) error {
	f.resets++
	return errors.New("index unavailable")
}

type fakeArchiver struct {
	err   error
	names []string
}

func (f *fakeArchiver) Archive(_ context.Context, filename string, _ []byte) (string, error) {
	f.names = append(f.names, filename)
	return "uploads/" + filename, f.err
}

type fakeRecords struct {
	records []model.UploadRecord
}

func (f *fakeRecords) Create(_ context.Context, r *model.UploadRecord) error {
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeRecords) ListRecent(_ context.Context, limit int) ([]model.UploadRecord, error) {
	if len(f.records) < limit {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

func TestUploadStoresIndexesArchivesAndRecords(t *testing.T) {
	store := repository.NewDocumentRepository()
	indexer := &fakeIndexer{}
	archiver := &fakeArchiver{}
	records := &fakeRecords{}
	svc := NewDocumentService(store, fakeExtractor{text: "Q3 revenue", fileType: model.FileTypePDF}, indexer,
		WithArchiver(archiver), WithUploadRecords(records))

	res, err := svc.Upload(context.Background(), "q3.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "Successfully processed q3.pdf! Total docs: 1", res.Message)
	assert.Equal(t, 1, res.TotalDocuments)
	assert.Equal(t, model.FileTypePDF, res.FileType)

	docs := store.List()
	require.Len(t, docs, 1)
	assert.Equal(t, model.Document{Content: "Q3 revenue", Filename: "q3.pdf", FileType: model.FileTypePDF, Size: 4}, docs[0])
	assert.Len(t, indexer.indexed, 1)
	assert.Equal(t, []string{"q3.pdf"}, archiver.names)

	require.Len(t, records.records, 1)
	assert.Equal(t, model.UploadStatusSuccess, records.records[0].Status)
	assert.Equal(t, "uploads/q3.pdf", records.records[0].ObjectKey)
}

func TestUploadArchiveFailureIsNotFatal(t *testing.T) {
	store := repository.NewDocumentRepository()
	svc := NewDocumentService(store, fakeExtractor{text: "x", fileType: model.FileTypeTxt}, nil,
		WithArchiver(&fakeArchiver{err: errors.New("minio down")}))

	_, err := svc.Upload(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name      string
		extractor fakeExtractor
		indexErr  error
		wantErr   error
	}{
		{name: "unsupported", extractor: fakeExtractor{err: model.ErrUnsupportedFileType}, wantErr: model.ErrUnsupportedFileType},
		{name: "empty extraction", extractor: fakeExtractor{text: " \n\t", fileType: model.FileTypePDF}, wantErr: model.ErrEmptyExtraction},
		{name: "index failure", extractor: fakeExtractor{text: "ok", fileType: model.FileTypeTxt}, indexErr: errors.New("kafka down"), wantErr: model.ErrExternalService},
		{name: "missing credentials", extractor: fakeExtractor{text: "ok", fileType: model.FileTypeTxt}, indexErr: model.ErrMissingCredentials, wantErr: model.ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewDocumentRepository()
			records := &fakeRecords{}
			svc := NewDocumentService(store, tt.extractor, &fakeIndexer{err: tt.indexErr}, WithUploadRecords(records))

			_, err := svc.Upload(context.Background(), "file.pdf", []byte("data"))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, store.Count())
			require.Len(t, records.records, 1)
			assert.Equal(t, model.UploadStatusFailed, records.records[0].Status)
			assert.NotEmpty(t, records.records[0].Message)
		})
	}
}

func TestAddEmail(t *testing.T) {
	store := repository.NewDocumentRepository()
	svc := NewDocumentService(store, fakeExtractor{}, nil)

	res, err := svc.AddEmail(context.Background(), "Quarterly planning meeting agenda items", "ceo@acme.com", "Bring numbers")
	require.NoError(t, err)
	assert.Equal(t, "Email_Quarterly planning meeting age...", res.Filename)
	assert.Equal(t, "Email processed successfully! Subject: 'Quarterly planning meeting agenda items'. Total docs: 1", res.Message)

	docs := store.List()
	require.Len(t, docs, 1)
	assert.Equal(t, model.FileTypeEmail, docs[0].FileType)
	assert.Equal(t, "SUBJECT: Quarterly planning meeting agenda items\nFROM: ceo@acme.com\n\nCONTENT:\nBring numbers", docs[0].Content)

	_, err = svc.AddEmail(context.Background(), "", "a@b.c", "body")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestForwardEmail(t *testing.T) {
	store := repository.NewDocumentRepository()
	svc := NewDocumentService(store, fakeExtractor{}, nil)

	res, err := svc.ForwardEmail(context.Background(), "From: bob@acme.com\nSubject: Lunch\n\nPizza on Friday")
	require.NoError(t, err)
	assert.Equal(t, "Email_Lunch...", res.Filename)
	assert.Equal(t, "Forwarded email processed! Subject: 'Lunch'. Total docs: 1", res.Message)
	assert.Equal(t, "SUBJECT: Lunch\nFROM: bob@acme.com\n\nCONTENT:\nPizza on Friday", store.List()[0].Content)

	_, err = svc.ForwardEmail(context.Background(), "   ")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestListClearAndHistory(t *testing.T) {
	store := repository.NewDocumentRepository()
	indexer := &fakeIndexer{}
	svc := NewDocumentService(store, fakeExtractor{text: "hello", fileType: model.FileTypeTxt}, indexer)

	_, err := svc.Upload(context.Background(), "a.txt", []byte("hello"))
	require.NoError(t, err)
	_, err = svc.AddEmail(context.Background(), "Hi", "x@y.z", "body")
	require.NoError(t, err)

	assert.Equal(t, []DocumentInfo{
		{Filename: "a.txt", Type: model.FileTypeTxt, Size: 5, Icon: "📄"},
		{Filename: "Email_Hi...", Type: model.FileTypeEmail, Size: int64(len("SUBJECT: Hi\nFROM: x@y.z\n\nCONTENT:\nbody")), Icon: "📧"},
	}, svc.List())
	assert.Equal(t, 2, svc.Count())

	// 索引清空失败不影响文档集合的清空
	assert.Equal(t, 2, svc.Clear(context.Background()))
	assert.Equal(t, 1, indexer.resets)
	assert.Equal(t, 0, svc.Count())
	assert.Empty(t, svc.List())

	_, err = svc.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
}

func TestHistory(t *testing.T) {
	records := &fakeRecords{}
	svc := NewDocumentService(repository.NewDocumentRepository(), fakeExtractor{text: "x", fileType: model.FileTypeTxt}, nil, WithUploadRecords(records))
	_, _ = svc.Upload(context.Background(), "a.txt", []byte("x"))
	_, _ = svc.Upload(context.Background(), "b.txt", []byte("x"))

	got, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a.txt", got[0].FileName)
}
