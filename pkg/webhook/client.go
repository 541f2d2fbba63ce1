package webhook

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/models"
)

// Client posts measurement results to a plotting collaborator, reusing
// connections and marshaling buffers across sends.
type Client struct {
	url        string
	httpClient *http.Client
	log        *logger.Logger
	quiet      bool
	bufferPool sync.Pool
}

// NewClient creates a webhook client with pooled connections.
func NewClient(url string, quiet bool, log *logger.Logger) *Client {
	if log == nil {
		log = logger.L()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: false},
		ResponseHeaderTimeout: 30 * time.Second,

		// payloads are small; skipping compression keeps latency down
		DisableCompression: true,
		ForceAttemptHTTP2:  false,
	}

	return &Client{
		url:   url,
		log:   log,
		quiet: quiet,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 4096))
			},
		},
	}
}

// Send posts the webhook item as a JSON payload.
func (c *Client) Send(item models.WebhookItem) error {
	payload := BuildResponse(item)

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := c.httpClient.Post(c.url, "application/json", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if !c.quiet {
		c.log.Info("webhook sent",
			logger.String("request_id", item.RequestID),
			logger.Float64("spontaneous_polarization", payload.SpontaneousPolarization),
			logger.Int("status", resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}
