package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

/*
Fingerprint is the cache key of a request.

It hashes the route pattern, the request path, the path wildcard values
sorted by name, and the query parameters sorted by key (repeated values keep
their order). Two requests that differ only in query parameter order share a
key; two paths under one subtree pattern do not.
*/
func Fingerprint(route, path string, pathValues map[string]string, query url.Values) string {
	h := sha256.New()

	h.Write([]byte(route))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})

	for _, name := range sortedKeys(pathValues) {
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write([]byte(pathValues[name]))
		h.Write([]byte{0})
	}
	h.Write([]byte{'?'})

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range query[k] {
			h.Write([]byte(k))
			h.Write([]byte{'='})
			h.Write([]byte(v))
			h.Write([]byte{0})
		}
	}

	return "fc:" + hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// wildcards lists the names of the {name} and {name...} segments of a ServeMux pattern.
func wildcards(pattern string) []string {
	var names []string
	for {
		open := strings.IndexByte(pattern, '{')
		if open < 0 {
			return names
		}
		end := strings.IndexByte(pattern[open:], '}')
		if end < 0 {
			return names
		}
		name := strings.TrimSuffix(pattern[open+1:open+end], "...")
		if name != "$" && name != "" {
			names = append(names, name)
		}
		pattern = pattern[open+end+1:]
	}
}

func pathValues(r *http.Request, names []string) map[string]string {
	values := make(map[string]string, len(names))
	for _, n := range names {
		values[n] = r.PathValue(n)
	}
	return values
}

/*
ClientIP identifies the caller for rate limiting.

By default it is the host part of RemoteAddr. Behind a trusted proxy the
first X-Forwarded-For hop is used instead.
*/
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
