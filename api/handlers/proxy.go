package handlers

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ProxyHandler forwards every request that matched no other route to the
// upstream application, untouched. It never goes near the registry.
type ProxyHandler struct {
	upstream   string
	httpClient *http.Client
}

// NewProxyHandler creates a ProxyHandler for the given upstream base URL,
// e.g. "http://localhost:3000".
func NewProxyHandler(upstream string) *ProxyHandler {
	return &ProxyHandler{
		upstream: strings.TrimSuffix(upstream, "/"),
		httpClient: &http.Client{
			// Don't follow redirects — return them to the caller.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Forward streams the request to the upstream and the response back.
func (p *ProxyHandler) Forward(c *gin.Context) {
	r := c.Request

	upstreamURL := p.upstream + r.URL.Path
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, r.Body)
	if err != nil {
		log.Printf("error creating upstream request: %v", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	copyHeaders(upstreamReq.Header, r.Header)

	resp, err := p.httpClient.Do(upstreamReq)
	if err != nil {
		log.Printf("upstream request failed: %v", err)
		c.Status(http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)

	if isStreamingResponse(resp) {
		streamResponse(c.Writer, resp.Body)
	} else {
		_, _ = io.Copy(c.Writer, resp.Body)
	}
}

// Register installs the handler as the router's fallback route.
func (p *ProxyHandler) Register(r *gin.Engine) {
	r.NoRoute(p.Forward)
}

// copyHeaders copies HTTP headers, excluding hop-by-hop headers that
// should not be forwarded between connections.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		switch strings.ToLower(k) {
		case "connection", "keep-alive", "transfer-encoding",
			"te", "trailer", "upgrade", "host":
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// isStreamingResponse checks if the upstream response should be flushed
// incrementally rather than buffered.
func isStreamingResponse(resp *http.Response) bool {
	ct := resp.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "text/event-stream") ||
		strings.Contains(ct, "application/x-ndjson") ||
		resp.Header.Get("Transfer-Encoding") == "chunked"
}

// streamResponse copies body to w, flushing after every read so the client
// sees upstream chunks as they arrive.
func streamResponse(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}
