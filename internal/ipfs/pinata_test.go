package ipfs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"fortunebridge/internal/model"
)

func TestGatewayURL(t *testing.T) {
	cases := []struct {
		gateway string
		uri     string
		want    string
	}{
		{"", "ipfs://bafy123", "https://ipfs.io/ipfs/bafy123"},
		{"https://gw.example.com/ipfs/", "ipfs://bafy123", "https://gw.example.com/ipfs/bafy123"},
		{"https://gw.example.com/ipfs", "ipfs://bafy123", "https://gw.example.com/ipfs/bafy123"},
		{"https://gw.example.com/ipfs/", "https://already.http/x.json", "https://already.http/x.json"},
		{"", "", ""},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, GatewayURL(tc.gateway, tc.uri), tc.uri)
	}
}

func TestUploadWithoutCredentialsReturnsMockURI(t *testing.T) {
	client := NewClient(context.Background(), Config{}, nil)

	uri, err := client.UploadMetadata(context.Background(), model.NFTMetadata{Name: "x"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "ipfs://bafybeih"), uri)

	uri, err = client.UploadImage(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "ipfs://bafkreib"), uri)
}

func TestUploadMetadataPinsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/testAuthentication":
			w.WriteHeader(http.StatusOK)
		case "/pinning/pinJSONToIPFS":
			require.Equal(t, "key", r.Header.Get("pinata_api_key"))
			require.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

			var body struct {
				PinataContent model.NFTMetadata `json:"pinataContent"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "The Sun", body.PinataContent.Name)

			json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmMeta"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	}, nil)

	uri, err := client.UploadMetadata(context.Background(), model.NFTMetadata{Name: "The Sun"})
	require.NoError(t, err)
	require.Equal(t, "ipfs://QmMeta", uri)
}

func TestUploadImagePinsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/testAuthentication":
			w.WriteHeader(http.StatusOK)
		case "/pinning/pinFileToIPFS":
			require.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			json.NewEncoder(w).Encode(map[string]string{"IpfsHash": "QmImage"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	}, nil)

	uri, err := client.UploadImage(context.Background(), []byte("png bytes"))
	require.NoError(t, err)
	require.Equal(t, "ipfs://QmImage", uri)
}

func TestUploadFallsBackOnPinataFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/testAuthentication" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(context.Background(), Config{
		APIKey:    "key",
		APISecret: "secret",
		BaseURL:   srv.URL,
	}, nil)

	uri, err := client.UploadMetadata(context.Background(), model.NFTMetadata{Name: "x"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "ipfs://bafybeih"), uri)
}
