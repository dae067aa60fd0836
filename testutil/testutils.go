package testutil

import (
	"bytes"
	"math/big"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/Imdavyking/openRoots/crypto"
)

// SampleCSV is a three-row dataset used by upload tests.
const SampleCSV = "city,population\nlagos,15388000\nnairobi,4397000\naccra,2388000\n"

// SignDatasetClaim signs a dataset-access claim the way the frontend wallet
// does: an eth personal signature over keccak256(uint256(datasetID)).
func SignDatasetClaim(t *testing.T, signer *crypto.Signer, datasetID string) string {
	t.Helper()

	n, ok := new(big.Int).SetString(strings.TrimPrefix(datasetID, "0x"), 16)
	require.True(t, ok, "dataset id must be a hex integer")

	var buf [32]byte
	n.FillBytes(buf[:])
	digest := crypto.Keccak256(buf[:])

	sig, err := signer.SignPersonal(digest[:])
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

// NewCSVUploadRequest builds a multipart upload request with the file under
// the csvFile field.
func NewCSVUploadRequest(t *testing.T, url, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("csvFile", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
