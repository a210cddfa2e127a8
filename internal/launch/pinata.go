// internal/launch/pinata.go
package launch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrPinFailed возвращается, если метаданные не удалось закрепить в IPFS.
var ErrPinFailed = errors.New("metadata pinning failed")

// OffChainMetadata - JSON, который кошельки читают по URI токена.
type OffChainMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image"`
	Description string `json:"description,omitempty"`
}

// MetadataPinner закрепляет метаданные и возвращает их URI.
type MetadataPinner interface {
	Pin(ctx context.Context, meta OffChainMetadata) (string, error)
}

// PinataClient загружает метаданные через pinJSONToIPFS.
type PinataClient struct {
	http    *http.Client
	url     string
	jwt     string
	gateway string
	logger  *zap.Logger
}

// NewPinataClient создает клиента Pinata. gateway - префикс URI, например https://gateway.pinata.cloud/ipfs.
func NewPinataClient(url, jwt, gateway string, logger *zap.Logger) *PinataClient {
	return &PinataClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		url:     url,
		jwt:     jwt,
		gateway: strings.TrimRight(gateway, "/"),
		logger:  logger.Named("pinata"),
	}
}

var _ MetadataPinner = (*PinataClient)(nil)

// Pin закрепляет meta и возвращает URI вида <gateway>/<IpfsHash>.
func (c *PinataClient) Pin(ctx context.Context, meta OffChainMetadata) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"pinataContent":  meta,
		"pinataMetadata": map[string]string{"name": meta.Symbol},
	})
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPinFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrPinFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d, body: %s", ErrPinFailed, resp.StatusCode, string(data))
	}

	hash := gjson.GetBytes(data, "IpfsHash").String()
	if hash == "" {
		return "", fmt.Errorf("%w: no IpfsHash in %s", ErrPinFailed, string(data))
	}

	uri := c.gateway + "/" + hash
	c.logger.Debug("Metadata pinned", zap.String("symbol", meta.Symbol), zap.String("uri", uri))
	return uri, nil
}
