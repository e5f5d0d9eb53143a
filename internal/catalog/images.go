package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// CoverURL builds an upstream cover URL. size 256 or 512 selects a thumbnail; anything else is the original.
func CoverURL(uploadsURL, mangaID, fileName string, size int) string {
	if mangaID == "" || fileName == "" {
		return ""
	}
	u := fmt.Sprintf("%s/covers/%s/%s", strings.TrimRight(uploadsURL, "/"), mangaID, fileName)
	switch size {
	case 256, 512:
		u += "." + strconv.Itoa(size) + ".jpg"
	}
	return u
}

// ProxiedCoverURL builds a cover URL served by the image proxy. Zero width or quality omits the hint.
func ProxiedCoverURL(proxyBase, mangaID, fileName string, width, quality int) string {
	if mangaID == "" || fileName == "" {
		return ""
	}
	u := fmt.Sprintf("%s/covers/%s/%s", strings.TrimRight(proxyBase, "/"), url.PathEscape(mangaID), url.PathEscape(fileName))

	q := url.Values{}
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	if quality > 0 {
		q.Set("q", strconv.Itoa(quality))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// RewriteCoverURL points an upstream cover URL at the image proxy. Other URLs are returned unchanged.
func RewriteCoverURL(raw, proxyBase string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	rest, ok := strings.CutPrefix(u.Path, "/covers/")
	if !ok {
		return raw
	}
	id, file, ok := strings.Cut(rest, "/")
	if !ok || id == "" || file == "" || strings.Contains(file, "/") {
		return raw
	}
	return ProxiedCoverURL(proxyBase, id, file, 0, 0)
}
