// Package network measures connection quality and owns the HTTP client every fetch goes through.
package network

import (
	"net/http"
	"time"

	"github.com/reels-cli/reels/log"
	"golang.org/x/net/http2"
)

// Client is shared by the catalog and the HLS engine. Fragment loads carry their own per-request
// deadlines, so the client-wide timeout only bounds runaway transfers.
var Client = &http.Client{
	Timeout:   2 * time.Minute,
	Transport: newTransport(),
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 32
	t.MaxConnsPerHost = 64
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = time.Second

	if err := http2.ConfigureTransport(t); err != nil {
		log.Warnf("http2 unavailable, falling back to http/1.1: %s", err)
	}
	return t
}
