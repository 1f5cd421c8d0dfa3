package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"

	"github.com/fentro/cms-console/internal/apperr"
)

const defaultUploadField = "files"

// ProgressFunc receives (bytesSent, bytesTotal) while a multipart body is sent.
type ProgressFunc func(sent, total int64)

// UploadFile is one part of a multipart upload.
type UploadFile struct {
	FieldName   string
	FileName    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Upload is a multipart request: plain fields plus file parts.
type Upload struct {
	Fields map[string]string
	Files  []UploadFile
}

// Upload sends a multipart POST. The progress sink, when set, is called as the
// body is consumed and always once more with the final totals on success.
func (c *Client) Upload(ctx context.Context, path string, upload Upload, progress ProgressFunc) (*Response, error) {
	body, contentType, err := encodeMultipart(upload)
	if err != nil {
		return nil, err
	}
	total := int64(body.Len())

	reporter := &progressReader{reader: bytes.NewReader(body.Bytes()), total: total, sink: progress}
	request, err := c.newRequest(ctx, http.MethodPost, path, nil, reporter)
	if err != nil {
		return nil, err
	}
	request.ContentLength = total
	request.Header.Set("Content-Type", contentType)

	response, err := c.send(ctx, request)
	if err != nil {
		return nil, err
	}
	reporter.finish()
	return response, nil
}

func encodeMultipart(upload Upload) (*bytes.Buffer, string, error) {
	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)

	for key, value := range upload.Fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", apperr.Wrap(apperr.KindValidation, "encode_failed", "upload could not be encoded", err)
		}
	}

	for _, file := range upload.Files {
		if err := writeFilePart(writer, file); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", apperr.Wrap(apperr.KindValidation, "encode_failed", "upload could not be encoded", err)
	}
	return buffer, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, file UploadFile) error {
	if file.Open == nil {
		return apperr.Validation("missing_file", fmt.Sprintf("%s has no content", file.FileName))
	}
	field := file.FieldName
	if field == "" {
		field = defaultUploadField
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", multipart.FileContentDisposition(field, file.FileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "encode_failed", "upload could not be encoded", err)
	}

	source, err := file.Open()
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, "file_unreadable", fmt.Sprintf("%s could not be read", file.FileName), err)
	}
	defer source.Close()

	if _, err := io.Copy(part, source); err != nil {
		return apperr.Wrap(apperr.KindStorage, "file_unreadable", fmt.Sprintf("%s could not be read", file.FileName), err)
	}
	return nil
}

// progressReader reports monotonically increasing byte counts.
type progressReader struct {
	reader io.Reader
	total  int64
	sink   ProgressFunc

	mu       sync.Mutex
	sent     int64
	reported int64
}

func (p *progressReader) Read(buffer []byte) (int, error) {
	n, err := p.reader.Read(buffer)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		p.report(p.sent)
		p.mu.Unlock()
	}
	return n, err
}

func (p *progressReader) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink != nil {
		p.reported = p.total
		p.sink(p.total, p.total)
	}
}

func (p *progressReader) report(sent int64) {
	if p.sink == nil || sent <= p.reported {
		return
	}
	if sent > p.total {
		sent = p.total
	}
	p.reported = sent
	p.sink(sent, p.total)
}
