package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"images_to_pdf/internal/converter"
	"images_to_pdf/internal/source"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

type fixture struct {
	srcDir string
	outDir string
	server *httptest.Server
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	f := &fixture{srcDir: t.TempDir(), outDir: t.TempDir()}

	h, err := NewHandler(Options{
		Sources:       source.NewMux(source.File{Root: f.srcDir}),
		Sinks:         FileSinks(f.outDir, nil),
		MaxUploadSize: maxUpload,
	})
	require.NoError(t, err)

	f.server = httptest.NewServer(h.Routes())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) writeImage(t *testing.T, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(f.srcDir, name)
	require.NoError(t, os.WriteFile(path, encodePNG(t, width, height), 0o644))
	return path
}

func (f *fixture) postJSON(t *testing.T, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/convert", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

type upload struct {
	name string
	data []byte
}

func newUploadRequest(t *testing.T, url string, params map[string]string, files []upload) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for key, val := range params {
		require.NoError(t, writer.WriteField(key, val))
	}
	for _, file := range files {
		part, err := writer.CreateFormFile("images", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, body []byte) APIErrorResponse {
	t.Helper()
	var errResp APIErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp), string(body))
	return errResp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, 0)

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, 0)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestHandleConvert(t *testing.T) {
	f := newFixture(t, 0)
	f.writeImage(t, "a.png", 40, 30)
	f.writeImage(t, "b.png", 20, 50)

	body := `{"imagePaths": ["a.png", "b.png"], "name": "out.pdf"}`
	resp, data := f.postJSON(t, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var res converter.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, filepath.Join(f.outDir, "out.pdf"), res.FilePath)
	assert.Equal(t, converter.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Pages)

	pdf, err := os.ReadFile(res.FilePath)
	require.NoError(t, err)
	pages, err := converter.InspectPages(pdf)
	require.NoError(t, err)
	assert.Equal(t, []converter.PageSize{{Width: 40, Height: 30}, {Width: 20, Height: 50}}, pages)
}

func TestHandleConvertTargetPath(t *testing.T) {
	f := newFixture(t, 0)
	f.writeImage(t, "a.png", 10, 10)
	target := filepath.Join(f.outDir, "team")
	require.NoError(t, os.Mkdir(target, 0o755))

	body := `{"imagePaths": ["a.png"], "name": "doc.pdf", "targetPathRN": ` + strconvQuote(target) + `}`
	resp, data := f.postJSON(t, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	assert.FileExists(t, filepath.Join(target, "doc.pdf"))
	assert.NoFileExists(t, filepath.Join(f.outDir, "doc.pdf"))
}

func TestHandleConvertRefusesTargetOutsideOutputDir(t *testing.T) {
	f := newFixture(t, 0)
	f.writeImage(t, "a.png", 10, 10)
	elsewhere := t.TempDir()
	victim := filepath.Join(elsewhere, "important.conf")
	require.NoError(t, os.WriteFile(victim, []byte("keep me"), 0o644))

	for _, target := range []string{elsewhere, "../", "team/../../x"} {
		body := `{"imagePaths": ["a.png"], "name": "important.conf", "targetPathRN": ` + strconvQuote(target) + `}`
		resp, data := f.postJSON(t, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, converter.CodeInvalidRequest, decodeError(t, data).Code, target)
	}

	kept, err := os.ReadFile(victim)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(kept))
}

func TestHandleConvertErrors(t *testing.T) {
	f := newFixture(t, 0)
	f.writeImage(t, "a.png", 10, 10)

	tests := []struct {
		name   string
		body   string
		status int
		code   converter.Code
	}{
		{"malformed json", `{"imagePaths": [`, http.StatusBadRequest, converter.CodeInvalidRequest},
		{"missing name", `{"imagePaths": ["a.png"]}`, http.StatusBadRequest, converter.CodeInvalidRequest},
		{"bad quality", `{"imagePaths": ["a.png"], "name": "x.pdf", "quality": 2}`, http.StatusBadRequest, converter.CodeInvalidRequest},
		{"missing image", `{"imagePaths": ["a.png", "missing.png"], "name": "x.pdf"}`, http.StatusUnprocessableEntity, converter.CodeDecode},
		{"unknown scheme", `{"imagePaths": ["content://media/1"], "name": "x.pdf"}`, http.StatusUnprocessableEntity, converter.CodeDecode},
		{"missing target", `{"imagePaths": ["a.png"], "name": "x.pdf", "targetPathRN": "does/not/exist"}`, http.StatusBadGateway, converter.CodeDestination},
		{"absolute image path", `{"imagePaths": ["/etc/hostname"], "name": "x.pdf"}`, http.StatusUnprocessableEntity, converter.CodeDecode},
		{"image path leaving root", `{"imagePaths": ["../a.png"], "name": "x.pdf"}`, http.StatusUnprocessableEntity, converter.CodeDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.postJSON(t, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			assert.Equal(t, tt.code, decodeError(t, data).Code)
		})
	}

	assert.NoFileExists(t, filepath.Join(f.outDir, "x.pdf"))
}

func TestHandleConvertReportsFailingImage(t *testing.T) {
	f := newFixture(t, 0)
	f.writeImage(t, "a.png", 10, 10)
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, "notes.png"), []byte("not an image"), 0o644))

	resp, data := f.postJSON(t, `{"imagePaths": ["a.png", "notes.png"], "name": "x.pdf"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	errResp := decodeError(t, data)
	details, ok := errResp.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), details["index"])
	assert.Equal(t, "notes.png", details["ref"])
}

func TestHandleUpload(t *testing.T) {
	f := newFixture(t, 0)
	req := newUploadRequest(t, f.server.URL+"/convert/upload",
		map[string]string{"options": `{"name": "scan"}`},
		[]upload{{"one.png", encodePNG(t, 30, 20)}, {"two.png", encodePNG(t, 15, 45)}})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="scan.pdf"`, resp.Header.Get("Content-Disposition"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	pages, err := converter.InspectPages(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []converter.PageSize{{Width: 30, Height: 20}, {Width: 15, Height: 45}}, pages)
}

func TestHandleUploadResizes(t *testing.T) {
	f := newFixture(t, 0)
	req := newUploadRequest(t, f.server.URL+"/convert/upload",
		map[string]string{"options": `{"maxSize": {"width": 50, "height": 50}, "quality": 0.6}`},
		[]upload{{"wide.png", encodePNG(t, 200, 100)}})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="converted.pdf"`, resp.Header.Get("Content-Disposition"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	pages, err := converter.InspectPages(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []converter.PageSize{{Width: 50, Height: 25}}, pages)
}

func TestHandleUploadErrors(t *testing.T) {
	f := newFixture(t, 0)

	t.Run("no images", func(t *testing.T) {
		req := newUploadRequest(t, f.server.URL+"/convert/upload", nil, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad options", func(t *testing.T) {
		req := newUploadRequest(t, f.server.URL+"/convert/upload",
			map[string]string{"options": "{"}, []upload{{"a.png", encodePNG(t, 5, 5)}})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("corrupt image", func(t *testing.T) {
		req := newUploadRequest(t, f.server.URL+"/convert/upload", nil,
			[]upload{{"a.png", encodePNG(t, 5, 5)}, {"b.png", []byte("garbage")}})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("local paths are not reachable", func(t *testing.T) {
		path := f.writeImage(t, "secret.png", 5, 5)
		req := newUploadRequest(t, f.server.URL+"/convert/upload",
			map[string]string{"image_urls": `[` + strconvQuote(path) + `]`}, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestHandleUploadTooLarge(t *testing.T) {
	f := newFixture(t, 1024)
	req := newUploadRequest(t, f.server.URL+"/convert/upload", nil,
		[]upload{{"big.png", bytes.Repeat([]byte{0xff}, 4096)}})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&converter.ConversionError{Code: converter.CodeInvalidRequest}, http.StatusBadRequest},
		{&converter.ConversionError{Code: converter.CodeDecode}, http.StatusUnprocessableEntity},
		{&converter.ConversionError{Code: converter.CodeRecompress}, http.StatusUnprocessableEntity},
		{&converter.ConversionError{Code: converter.CodeCompose}, http.StatusInternalServerError},
		{&converter.ConversionError{Code: converter.CodeFinalize}, http.StatusInternalServerError},
		{&converter.ConversionError{Code: converter.CodeDestination}, http.StatusBadGateway},
		{&converter.ConversionError{Code: converter.CodeDecode, Err: context.Canceled}, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapHTTPStatus(tt.err), tt.err.Error())
	}
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	_, err := NewHandler(Options{})
	assert.Error(t, err)

	_, err = NewHandler(Options{Sources: source.NewMux(source.File{})})
	assert.Error(t, err)
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
