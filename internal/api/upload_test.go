package api

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reclaim-app/reclaim/internal/db"
	"github.com/reclaim-app/reclaim/internal/media"
)

func setupUploadServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	mediaStore, err := media.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating media store: %v", err)
	}
	router := NewRouter(Deps{DB: database, JWTSecret: testJWTSecret, Media: mediaStore})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token, _ := registerUser(t, server, "uploader")
	return server, token
}

func multipartBody(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "photo.png")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func pngFixture(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 20))); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func TestUploadAndServe(t *testing.T) {
	server, token := setupUploadServer(t)

	body, contentType := multipartBody(t, "image", pngFixture(t))
	req, _ := http.NewRequest("POST", server.URL+"/upload", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	var uploaded uploadResponse
	if status := doJSON(t, req, &uploaded); status != http.StatusCreated {
		t.Fatalf("upload: %d", status)
	}
	if uploaded.URL == "" {
		t.Fatal("expected upload URL")
	}

	// The file serves back as JPEG, publicly.
	resp, err := http.Get(server.URL + uploaded.URL)
	if err != nil {
		t.Fatalf("fetching upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
		t.Error("expected JPEG content")
	}
}

func TestUploadAcceptsFileAlias(t *testing.T) {
	server, token := setupUploadServer(t)

	body, contentType := multipartBody(t, "file", pngFixture(t))
	req, _ := http.NewRequest("POST", server.URL+"/upload", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	var uploaded uploadResponse
	if status := doJSON(t, req, &uploaded); status != http.StatusCreated {
		t.Fatalf("upload with alias field: %d", status)
	}
	if uploaded.URL == "" {
		t.Fatal("expected upload URL")
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	server, token := setupUploadServer(t)

	body, contentType := multipartBody(t, "image", []byte("just some text"))
	req, _ := http.NewRequest("POST", server.URL+"/upload", body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	if status := doJSON(t, req, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestUploadRequiresAuth(t *testing.T) {
	server, _ := setupUploadServer(t)

	body, contentType := multipartBody(t, "image", pngFixture(t))
	req, _ := http.NewRequest("POST", server.URL+"/upload", body)
	req.Header.Set("Content-Type", contentType)

	if status := doJSON(t, req, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}
}

func TestServeMissingUpload(t *testing.T) {
	server, _ := setupUploadServer(t)

	resp, err := http.Get(server.URL + "/uploads/doesnotexist.jpg")
	if err != nil {
		t.Fatalf("fetching: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
