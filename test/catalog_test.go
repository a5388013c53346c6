package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entrySummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	SequentialNumber int    `json:"sequentialNumber"`
	TypeCode         int    `json:"typeCode"`
}

func pngImage(size int) []byte {
	img := make([]byte, size)
	copy(img, "\x89PNG\x0D\x0A\x1A\x0A")
	return img
}

func postEntry(ctx context.Context, t *testing.T, client *http.Client, name string, typeCode int, image []byte) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("name", name))
	require.NoError(t, writer.WriteField("typeCode", strconv.Itoa(typeCode)))
	part, err := writer.CreateFormFile("image", name+".png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/catalog", serverEndpoint), body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func listEntries(ctx context.Context, t *testing.T, client *http.Client) []entrySummary {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/catalog", serverEndpoint), nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []entrySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	return entries
}

func (s *IntegrationTestSuite) TestCatalog_RequiresSession() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := s.newHTTPClient()

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/catalog", serverEndpoint), nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postEntry(ctx, t, client, "Pikachu-01", 13, pngImage(1024))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestCatalog_CreateListImage() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))
	client := s.newHTTPClient()
	doLogin(ctx, t, client)

	var storedCount int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_entry`).Scan(&storedCount))

	name := "Pikachu-" + gofakeit.LetterN(6)
	image := pngImage(900 * 1024)
	resp := postEntry(ctx, t, client, name, 13, image)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created entrySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, name, created.Name)
	assert.Equal(t, 13, created.TypeCode)
	assert.GreaterOrEqual(t, created.SequentialNumber, 1026+storedCount)

	entries := listEntries(ctx, t, client)
	require.Len(t, entries, storedCount+1)
	assert.Equal(t, created, entries[len(entries)-1])

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/api/catalog/%s/image", serverEndpoint, created.ID), nil)
	require.NoError(t, err)
	imgResp, err := client.Do(req)
	require.NoError(t, err)
	defer imgResp.Body.Close()
	require.Equal(t, http.StatusOK, imgResp.StatusCode)
	assert.Equal(t, "image/png", imgResp.Header.Get("Content-Type"))
	imgBytes, err := io.ReadAll(imgResp.Body)
	require.NoError(t, err)
	assert.Equal(t, image, imgBytes)

	// invalid name is rejected and nothing is stored
	badResp := postEntry(ctx, t, client, "Pikachu 01", 13, image)
	defer badResp.Body.Close()
	require.Equal(t, http.StatusBadRequest, badResp.StatusCode)
	var validationResp struct {
		Message string `json:"message"`
		Errors  []struct {
			Field string `json:"field"`
			Msg   string `json:"msg"`
		} `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(badResp.Body).Decode(&validationResp))
	require.Len(t, validationResp.Errors, 1)
	assert.Equal(t, "name", validationResp.Errors[0].Field)
	assert.Len(t, listEntries(ctx, t, client), storedCount+1)
}

func (s *IntegrationTestSuite) TestCatalog_ConcurrentCreates() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))
	client := s.newHTTPClient()
	doLogin(ctx, t, client)

	const creators = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := postEntry(ctx, t, client, "Eevee-"+gofakeit.LetterN(8), gofakeit.Number(1, 18), pngImage(2048))
			defer resp.Body.Close()
			if !assert.Equal(t, http.StatusCreated, resp.StatusCode) {
				return
			}
			var created entrySummary
			if assert.NoError(t, json.NewDecoder(resp.Body).Decode(&created)) {
				mu.Lock()
				numbers = append(numbers, created.SequentialNumber)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, numbers, creators)
	sort.Ints(numbers)
	for i := 1; i < len(numbers); i++ {
		assert.Equal(t, numbers[i-1]+1, numbers[i], "numbers: %v", numbers)
	}
}
