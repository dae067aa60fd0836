package pinning

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinFile(t *testing.T) {
	const cid = "QmTestCid123"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "Bearer test-jwt", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "data.csv", header.Filename)

		w.Write([]byte(`{"IpfsHash":"` + cid + `","PinSize":42}`))
	}))
	defer srv.Close()

	c := New(&Config{
		BaseURL:    srv.URL,
		GatewayURL: "https://gateway.example",
		JWT:        "test-jwt",
		Log:        slog.Default(),
	})

	got, err := c.PinFile(context.Background(), "data.csv", "text/csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, cid, got)
	assert.Equal(t, "https://gateway.example/ipfs/"+cid, c.GatewayURL(cid))
}

func TestPinFileUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL, JWT: "jwt", Log: slog.Default()})
	_, err := c.PinFile(context.Background(), "data.csv", "text/csv", []byte("x"))
	assert.Error(t, err)
}

func TestPinFileEmptyCid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(&Config{BaseURL: srv.URL, JWT: "jwt", Log: slog.Default()})
	_, err := c.PinFile(context.Background(), "data.csv", "text/csv", []byte("x"))
	assert.Error(t, err)
}
