package utils

import (
	"crypto/tls"
	"net/http"
	"time"
)

var (
	HttpClientSkipTlsVerify *http.Client
	HttpClient              *http.Client
)

func init() {
	HttpClientSkipTlsVerify = httpClient(_httpClient{
		Transport: NewTransport(false),
		Timeout:   time.Second * 10,
	})
	HttpClient = httpClient(_httpClient{
		Transport: NewTransport(true),
		Timeout:   time.Second * 10,
	})
}

// NewTransport returns a proxy-aware transport. verifySSL=false disables certificate checks.
func NewTransport(verifySSL bool) *http.Transport {
	return &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !verifySSL},
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
}

type _httpClient struct {
	Transport http.RoundTripper
	Timeout   time.Duration
}

func httpClient(conf _httpClient) *http.Client {
	return &http.Client{
		Transport: conf.Transport,
		Timeout:   conf.Timeout,
	}
}

// ChooseClient 按是否校验证书选择共享客户端
func ChooseClient(verifySSL bool) *http.Client {
	if verifySSL {
		return HttpClient
	}
	return HttpClientSkipTlsVerify
}
