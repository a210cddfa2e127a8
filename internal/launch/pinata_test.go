package launch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func TestPinataClient_Pin(t *testing.T) {
	var body []byte
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"IpfsHash":"QmHash","PinSize":120,"Timestamp":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewPinataClient(srv.URL, "jwt-token", "https://gateway.example/ipfs/", zap.NewNop())
	uri, err := c.Pin(context.Background(), OffChainMetadata{Name: "Dog", Symbol: "DOG", Image: "https://img/dog.png"})
	require.NoError(t, err)

	assert.Equal(t, "https://gateway.example/ipfs/QmHash", uri)
	assert.Equal(t, "Bearer jwt-token", auth)
	assert.Equal(t, "DOG", gjson.GetBytes(body, "pinataContent.symbol").String())
	assert.Equal(t, "https://img/dog.png", gjson.GetBytes(body, "pinataContent.image").String())
	assert.False(t, gjson.GetBytes(body, "pinataContent.description").Exists())
}

func TestPinataClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad jwt"}`},
		{"missing hash", http.StatusOK, `{"PinSize":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewPinataClient(srv.URL, "jwt", "https://gw", zap.NewNop())
			_, err := c.Pin(context.Background(), OffChainMetadata{Name: "a", Symbol: "b"})
			assert.ErrorIs(t, err, ErrPinFailed)
		})
	}
}
