package httpmiddleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Burst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{Rate: 0.001, Burst: 3})(okHandler())

	for i := range 3 {
		w := doRequest(handler, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := doRequest(handler, "192.168.1.1:12345")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_PerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{Rate: 0.001, Burst: 1})(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1").Code)
}

func TestRateLimit_Refill(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{Rate: 50, Burst: 1})(okHandler())

	require.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1").Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1").Code)
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Rate: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Now()
	rl.limiter("a", now)
	rl.limiter("b", now.Add(2*time.Minute))

	rl.evict(now.Add(2*time.Minute + time.Second))

	assert.NotContains(t, rl.visitors, "a")
	assert.Contains(t, rl.visitors, "b")
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("::1/128")}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		xff     []string
		remote  string
		want    string
	}{
		{name: "RemoteAddr", remote: "9.9.9.9:1234", want: "9.9.9.9"},
		{name: "RemoteAddrNoPort", remote: "9.9.9.9", want: "9.9.9.9"},
		{name: "UntrustedPeerIgnoresHeader", trusted: trusted, xff: []string{"1.2.3.4"}, remote: "203.0.113.7:80", want: "203.0.113.7"},
		{name: "NoProxiesIgnoresHeader", trusted: nil, xff: []string{"1.2.3.4"}, remote: "10.0.0.1:80", want: "10.0.0.1"},
		{name: "TrustedPeer", trusted: trusted, xff: []string{"1.2.3.4"}, remote: "10.0.0.1:80", want: "1.2.3.4"},
		{name: "SpoofedLeftmostHop", trusted: trusted, xff: []string{"6.6.6.6, 1.2.3.4"}, remote: "10.0.0.1:80", want: "1.2.3.4"},
		{name: "ProxyChain", trusted: trusted, xff: []string{"1.2.3.4, 10.1.1.1", "10.2.2.2"}, remote: "10.0.0.1:80", want: "1.2.3.4"},
		{name: "GarbageHop", trusted: trusted, xff: []string{"not-an-ip"}, remote: "10.0.0.1:80", want: "10.0.0.1"},
		{name: "OnlyProxies", trusted: trusted, xff: []string{"10.1.1.1"}, remote: "10.0.0.1:80", want: "10.0.0.1"},
		{name: "IPv6Peer", trusted: trusted, xff: []string{"2001:db8::1"}, remote: "[::1]:80", want: "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ClientIP(tt.trusted)(req))
		})
	}
}

func TestRateLimit_ForwardedHeaderRotation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{Rate: 1, Burst: 1})(okHandler())

	allowed := 0
	for i := range 50 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestRateLimit_TrustedProxyKeysByClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{
		Rate:           0.001,
		Burst:          1,
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})(okHandler())

	do := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("1.1.1.1"))
	assert.Equal(t, http.StatusOK, do("2.2.2.2"))
}
