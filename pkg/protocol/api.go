// Package protocol defines the wire types of the console backend API.
package protocol

import "encoding/json"

// CodeOK is the envelope code of a successful call.
const CodeOK = 0

// Result is the {code,msg,data} envelope every backend endpoint returns.
type Result[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data T      `json:"data"`
}

// RawResult keeps data undecoded so callers can tell null from a value.
type RawResult = Result[json.RawMessage]

// IsNull reports whether data is absent or the JSON literal null.
func IsNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

// Page is the paginated list shape of GET {resource}/page.
type Page[T any] struct {
	Records []T   `json:"records"`
	Total   int64 `json:"total"`
	Size    int64 `json:"size"`
	Current int64 `json:"current"`
	Pages   int64 `json:"pages,omitempty"`
}

// ErrorResponse is returned by the gateway on auth and transport errors
// that bypass the envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Code             int    `json:"code,omitempty"`
}

// TokenResponse is the OAuth2 token bundle of POST /auth/oauth2/token.
// Only the non-standard members are listed; the standard ones are handled
// by the oauth2 package.
type TokenResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	ClientID string `json:"clientId"`
	License  string `json:"license"`
}

// CheckResult is returned by GET .../check?md5=<digest>.
type CheckResult struct {
	Uploaded       bool  `json:"uploaded"`
	UploadedChunks []int `json:"uploadedChunks"`
	FileStatus     int   `json:"fileStatus"`
}

// MergeParams is the body of POST .../merge.
type MergeParams struct {
	MD5      string `json:"md5"`
	FileName string `json:"fileName"`
}

// ChunkFields names the multipart fields of POST .../chunk.
const (
	FieldChunkFile  = "file"
	FieldChunkMD5   = "md5"
	FieldChunkIndex = "chunkIndex"
	FieldChunkTotal = "totalChunks"
	FieldChunkName  = "fileName"
	FieldChunkSize  = "chunkSize"
)

// MergedFile is the reference to a file assembled on the server.
type MergedFile struct {
	ID           string `json:"id,omitempty"`
	MD5          string `json:"md5"`
	FileName     string `json:"fileName"`
	URL          string `json:"url,omitempty"`
	Size         int64  `json:"size,omitempty"`
	CreateTime   string `json:"createTime,omitempty"`
	Deduplicated bool   `json:"-"`
}

// DeleteRequest is the body of DELETE {resource}.
type DeleteRequest []string
