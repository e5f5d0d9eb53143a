package offline

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"time"
)

func init() {
	gob.Register(entry{})
}

// entry is a stored response.
type entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

func (e entry) ok() bool { return e.Status >= 200 && e.Status < 300 }

// response rebuilds an [http.Response] for req. source is reported in the X-Offline-Cache header.
func (e entry) response(req *http.Request, source string) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if source != "" {
		header.Set(CacheHeader, source)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// readEntry drains and closes resp's body.
func readEntry(resp *http.Response, now time.Time) (entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entry{}, fmt.Errorf("read response body: %w", err)
	}
	return entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: now}, nil
}

// cacheKey identifies a request within a partition.
func cacheKey(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}
