package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	base := tr.Base.(*http.Transport)
	if base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewClient_DefaultsAndNoProxy(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	base := c.Transport.(*Transport).Base.(*http.Transport)
	if base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("期望默认超时 %v，实际 %v", DefaultTimeout, c.Timeout)
	}

	c2, _ := NewClient(Options{Timeout: 3 * time.Second, RetryMax: 4})
	if c2.Timeout != 3*time.Second || c2.Transport.(*Transport).RetryMax != 4 {
		t.Fatalf("Options 未生效：timeout=%v retry=%d", c2.Timeout, c2.Transport.(*Transport).RetryMax)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	for _, p := range []string{"http://[::1", "127.0.0.1:8080"} {
		if _, err := NewClient(Options{ProxyURL: p}); err == nil {
			t.Fatalf("proxy=%q 期望错误，但得到 nil", p)
		}
	}
}

func TestTransport_SetsUserAgent(t *testing.T) {
	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c, _ := NewClient(Options{})
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()

	got, _ := ua.Load().(string)
	if got == "" || got == "Go-http-client/1.1" {
		t.Fatalf("期望来自 UA 池的 User-Agent，实际 %q", got)
	}
}

type flakyRT struct {
	calls int
	fails int
}

func (f *flakyRT) RoundTrip(r *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, errors.New("connection reset")
	}
	return &http.Response{StatusCode: 200, Body: http.NoBody, Request: r}, nil
}

func TestTransport_BoundedRetry(t *testing.T) {
	base := &flakyRT{fails: 5}
	tr := &Transport{Base: base, ua: globalUA, RetryMax: 2}
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}
	if base.calls != 3 {
		t.Fatalf("期望 3 次尝试（1 + RetryMax），实际 %d", base.calls)
	}

	base = &flakyRT{fails: 1}
	tr.Base = base
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if base.calls != 2 {
		t.Fatalf("期望第 2 次成功，实际调用 %d 次", base.calls)
	}
}

func TestTransport_NoRetryForPost(t *testing.T) {
	base := &flakyRT{fails: 5}
	tr := &Transport{Base: base, ua: globalUA, RetryMax: 3}
	req, _ := http.NewRequest(http.MethodPost, "http://example.test/", http.NoBody)
	_, _ = tr.RoundTrip(req)
	if base.calls != 1 {
		t.Fatalf("POST 不应重试，实际调用 %d 次", base.calls)
	}
}
