package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
	"github.com/jmake-zxb/jk-ui/pkg/retry"
	"github.com/jmake-zxb/jk-ui/pkg/upload"
)

var _ upload.Backend = (*Client)(nil)

// ErrEmptyDownload is returned when an export or download has no content.
var ErrEmptyDownload = errors.New("client: content is empty, nothing to download")

// EmptyDownloadNotice is published alongside ErrEmptyDownload.
const EmptyDownloadNotice = "Content is empty, unable to download"

// CheckFile asks which chunks of the file with digest md5 the server has.
func (c *Client) CheckFile(ctx context.Context, md5 string) (*protocol.CheckResult, error) {
	var res protocol.CheckResult
	q := url.Values{protocol.FieldChunkMD5: {md5}}
	if err := c.call(ctx, http.MethodGet, c.uploadPath+"/check", q, nil, &res); err != nil {
		return nil, fmt.Errorf("check %s: %w", md5, err)
	}
	return &res, nil
}

// UploadChunk posts one chunk as multipart form data. The body is
// streamed, not buffered.
func (c *Client) UploadChunk(ctx context.Context, ch upload.Chunk) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeChunkForm(mw, ch))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.uploadPath+"/chunk", nil), pr)
	if err != nil {
		pr.CloseWithError(err)
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	if err := c.do(req, nil); err != nil {
		pr.CloseWithError(err)
		return fmt.Errorf("chunk %d: %w", ch.Index, err)
	}
	return nil
}

func writeChunkForm(mw *multipart.Writer, ch upload.Chunk) error {
	fields := [][2]string{
		{protocol.FieldChunkMD5, ch.MD5},
		{protocol.FieldChunkIndex, strconv.Itoa(ch.Index)},
		{protocol.FieldChunkTotal, strconv.Itoa(ch.Total)},
		{protocol.FieldChunkName, ch.FileName},
		{protocol.FieldChunkSize, strconv.FormatInt(ch.ChunkSize, 10)},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile(protocol.FieldChunkFile, ch.FileName)
	if err != nil {
		return err
	}
	if ch.Body != nil {
		if _, err := io.Copy(part, ch.Body); err != nil {
			return err
		}
	}
	return mw.Close()
}

// MergeFile asks the server to assemble the chunks. Merging an already
// merged file succeeds: the server answers 409, which is not an error
// here.
func (c *Client) MergeFile(ctx context.Context, p protocol.MergeParams) (*protocol.MergedFile, error) {
	var merged protocol.MergedFile
	err := c.call(ctx, http.MethodPost, c.uploadPath+"/merge", nil, p, &merged)
	if ae, ok := AsAPIError(err); ok && ae.Status == http.StatusConflict {
		logging.WithContext(ctx).Info("file already merged",
			logging.String("md5", p.MD5),
			logging.String("file", p.FileName),
		)
		return &protocol.MergedFile{MD5: p.MD5, FileName: p.FileName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("merge %s: %w", p.FileName, err)
	}
	return &merged, nil
}

// Download is a streamed file response. The caller must Close it.
type Download struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
	// Size is -1 when the server did not say.
	Size int64
}

// Close closes the body.
func (d *Download) Close() error {
	return d.Body.Close()
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Download fetches a file. An empty body returns ErrEmptyDownload and
// publishes a notice. A JSON envelope with a non-zero code is an
// APIError.
func (c *Client) Download(ctx context.Context, p string, query url.Values) (*Download, error) {
	c.ensureFresh(ctx)

	var resp *http.Response
	err := retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(p, query), nil)
		if err != nil {
			return err
		}
		c.applyAuth(req)

		r, err := c.httpClient.Do(req)
		if err != nil {
			return retry.Retryable(err)
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			defer r.Body.Close()
			body, _ := readAllLimit(r.Body, 4096)
			ae := apiErrorFrom(r.StatusCode, body)
			if r.StatusCode >= 500 {
				return retry.Retryable(ae)
			}
			return ae
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", p, err)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		defer resp.Body.Close()
		body, err := readAllLimit(resp.Body, 32<<20)
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", p, err)
		}
		if ae, ok := AsAPIError(decodeEnvelope(resp.StatusCode, body, nil)); ok {
			return nil, fmt.Errorf("download %s: %w", p, ae)
		}
		if len(body) == 0 {
			return nil, c.emptyDownload(p)
		}
		return &Download{
			Body:        io.NopCloser(bytes.NewReader(body)),
			FileName:    fileNameFrom(resp.Header.Get("Content-Disposition")),
			ContentType: ct,
			Size:        int64(len(body)),
		}, nil
	}

	if resp.ContentLength == 0 {
		resp.Body.Close()
		return nil, c.emptyDownload(p)
	}
	br := bufio.NewReader(resp.Body)
	if _, err := br.Peek(1); err == io.EOF {
		resp.Body.Close()
		return nil, c.emptyDownload(p)
	}

	return &Download{
		Body:        readCloser{Reader: br, Closer: resp.Body},
		FileName:    fileNameFrom(resp.Header.Get("Content-Disposition")),
		ContentType: ct,
		Size:        resp.ContentLength,
	}, nil
}

func (c *Client) emptyDownload(p string) error {
	c.notices.Error(EmptyDownloadNotice)
	logging.Warn("empty download", logging.String("path", p))
	return ErrEmptyDownload
}

func fileNameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	if name := params["filename"]; name != "" {
		if dec, err := url.QueryUnescape(name); err == nil {
			return dec
		}
		return name
	}
	return ""
}
