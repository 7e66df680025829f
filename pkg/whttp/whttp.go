package whttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
	Header         http.Header
}

var proxyURL *url.URL

// SetupProxy routes clients created afterwards through proxy.
func SetupProxy(proxy string) error {
	if proxy == "" {
		proxyURL = nil
		return nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %v", err)
	}
	proxyURL = u
	return nil
}

// NewClient returns a retrying client. 429 responses are never retried
// because the caller owns the throttling cooldown. logger may be nil.
func NewClient(retries int, timeout time.Duration, logger retryablehttp.LeveledLogger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.Logger = logger
	c.HTTPClient.Timeout = timeout
	c.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	// Hand the last response back instead of wrapping it in an error.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if proxyURL != nil {
		c.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return c
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, nil)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
		Header:     resp.Header,
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result, ok := traverse(c); ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
