package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"kimbiofarm-backend/internal/database"
	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	svc    *ledger.Service
	images *ImageStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	now := func() time.Time { return testNow }
	svc := ledger.NewService(db).WithClock(now)
	images := NewImageStore(t.TempDir(), 1024)

	app := fiber.New()
	app.Get("/api/stock", StockListHandler(db, 2))
	app.Get("/api/history", HistoryHandler(db, 10))
	app.Get("/api/receipts/form", ReceiptFormHandler(db, now))
	app.Post("/api/receipts", CreateReceiptHandler(svc))
	app.Get("/api/dispatches/form", DispatchFormHandler(db, now))
	app.Post("/api/dispatches", CreateDispatchHandler(svc))
	app.Get("/api/plants/:code", PlantDetailHandler(db))
	app.Get("/api/plants/:code/summary", PlantSummaryHandler(db))
	app.Get("/api/plants/:code/balance", PlantBalanceHandler(svc))
	app.Delete("/api/plants/:code", DeletePlantHandler(svc, images))
	app.Post("/api/plants/:code/image", UploadImageHandler(svc, images))
	app.Post("/api/plants/:code/image-url", ImageURLHandler(svc, images))
	app.Get("/api/plants/:code/image", GetImageHandler(db, images))

	return &testEnv{app: app, db: db, svc: svc, images: images}
}

func (e *testEnv) receive(t *testing.T, code, name string, qty, cost float64) {
	t.Helper()
	_, err := e.svc.RecordReceipt(context.Background(), ledger.ReceiptInput{
		Code: code, Name: name, Quantity: qty, UnitCost: cost,
	})
	require.NoError(t, err)
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode, decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

func TestCreateReceiptAndDispatch(t *testing.T) {
	env := newTestEnv(t)

	status, body := doJSON(t, env.app, "POST", "/api/receipts",
		`{"code":"A001","name":"Mai vàng","quantity":10,"unit_cost":50000,"shipping_fee":5000,"date":"2024-03-01"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, body["success"])
	receipt := body["receipt"].(map[string]any)
	assert.Equal(t, "2024-03-01", receipt["date"])
	assert.Equal(t, 505000.0, receipt["total_cost"])
	assert.Equal(t, "Mai vàng", receipt["name"])

	status, body = doJSON(t, env.app, "POST", "/api/dispatches", `{"code":"A001","quantity":4,"reason":"Bán"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 6.0, body["plant"].(map[string]any)["stock"])
	assert.Equal(t, "2024-03-15", body["dispatch"].(map[string]any)["date"])

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		current any
	}{
		{name: "insufficient stock", path: "/api/dispatches", body: `{"code":"A001","quantity":10}`, status: fiber.StatusConflict, current: 6.0},
		{name: "unknown plant", path: "/api/dispatches", body: `{"code":"ZZZ","quantity":1}`, status: fiber.StatusNotFound},
		{name: "zero dispatch", path: "/api/dispatches", body: `{"code":"A001","quantity":0}`, status: fiber.StatusBadRequest},
		{name: "negative cost", path: "/api/receipts", body: `{"code":"A001","quantity":1,"unit_cost":-1}`, status: fiber.StatusBadRequest},
		{name: "missing code", path: "/api/receipts", body: `{"quantity":1,"unit_cost":1}`, status: fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, env.app, "POST", tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, body)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
			if tt.current != nil {
				assert.Equal(t, tt.current, body["current_stock"])
			}
		})
	}

	var plant models.Plant
	require.NoError(t, env.db.Where("code = ?", "A001").First(&plant).Error)
	assert.Equal(t, 6.0, plant.Stock)
}

func TestCreateReceiptBadDate(t *testing.T) {
	env := newTestEnv(t)
	status, _ := doJSON(t, env.app, "POST", "/api/receipts", `{"code":"A001","quantity":1,"unit_cost":1,"date":"15/03/2024"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestFormHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)
	env.receive(t, "B002", "Bàng", 1, 1000)
	_, err := env.svc.RecordDispatch(context.Background(), ledger.DispatchInput{Code: "B002", Quantity: 1})
	require.NoError(t, err)

	status, body := doJSON(t, env.app, "GET", "/api/receipts/form", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "2024-03-15", body["today"])
	assert.Len(t, body["plants"], 2)

	status, body = doJSON(t, env.app, "GET", "/api/dispatches/form", "")
	require.Equal(t, fiber.StatusOK, status)
	plants := body["plants"].([]any)
	require.Len(t, plants, 1)
	assert.Equal(t, "A001", plants[0].(map[string]any)["code"])
}

func TestStockListSearchAndPages(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)
	env.receive(t, "A002", "Mai trắng", 8, 1000)
	env.receive(t, "B001", "Bàng Singapore", 5, 1000)

	tests := []struct {
		name  string
		query string
		codes []string
		total float64
		pages float64
	}{
		{name: "first page by stock", query: "", codes: []string{"A002", "B001"}, total: 3, pages: 2},
		{name: "second page", query: "?page=2", codes: []string{"A001"}, total: 3, pages: 2},
		{name: "search by name", query: "?search=MAI", codes: []string{"A002", "A001"}, total: 2, pages: 1},
		{name: "search by code", query: "?search=b00", codes: []string{"B001"}, total: 1, pages: 1},
		{name: "no match", query: "?search=xyz", codes: []string{}, total: 0, pages: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, env.app, "GET", "/api/stock"+tt.query, "")
			require.Equal(t, fiber.StatusOK, status)

			codes := []string{}
			for _, it := range body["items"].([]any) {
				codes = append(codes, it.(map[string]any)["code"].(string))
			}
			assert.Equal(t, tt.codes, codes)

			p := body["pagination"].(map[string]any)
			assert.Equal(t, tt.total, p["total"])
			assert.Equal(t, tt.pages, p["pages"])
		})
	}
}

func TestStockSearchFoldsVietnamese(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "MAI VÀNG", 3, 1000)
	env.receive(t, "B001", "Bàng Singapore", 5, 1000)
	env.receive(t, "D001", "Đinh lăng", 1, 1000)

	tests := []struct {
		search string
		codes  []string
	}{
		{search: "vàng", codes: []string{"A001"}},
		{search: "VÀNG", codes: []string{"A001"}},
		{search: "vang", codes: []string{"A001"}},
		{search: "bàng", codes: []string{"B001"}},
		{search: "đinh", codes: []string{"D001"}},
		{search: "dinh lang", codes: []string{"D001"}},
		{search: "a00", codes: []string{"A001"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			status, body := doJSON(t, env.app, "GET", "/api/stock?search="+url.QueryEscape(tt.search), "")
			require.Equal(t, fiber.StatusOK, status)

			codes := []string{}
			for _, it := range body["items"].([]any) {
				codes = append(codes, it.(map[string]any)["code"].(string))
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestStockSearchFollowsRename(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai", 3, 1000)
	env.receive(t, "A001", "Mai chiếu thủy", 1, 1000)

	_, body := doJSON(t, env.app, "GET", "/api/stock?search="+url.QueryEscape("thủy"), "")
	assert.Len(t, body["items"], 1)
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)
	_, err := env.svc.RecordDispatch(context.Background(), ledger.DispatchInput{Code: "A001", Quantity: 1, Reason: "Bán"})
	require.NoError(t, err)

	status, body := doJSON(t, env.app, "GET", "/api/history", "")
	require.Equal(t, fiber.StatusOK, status)
	receipts := body["receipts"].(map[string]any)["items"].([]any)
	dispatches := body["dispatches"].(map[string]any)["items"].([]any)
	require.Len(t, receipts, 1)
	require.Len(t, dispatches, 1)
	assert.Equal(t, "Mai vàng", receipts[0].(map[string]any)["name"])
	assert.Equal(t, "Bán", dispatches[0].(map[string]any)["reason"])

	_, body = doJSON(t, env.app, "GET", "/api/history?type=receipts", "")
	assert.Contains(t, body, "receipts")
	assert.NotContains(t, body, "dispatches")

	status, _ = doJSON(t, env.app, "GET", "/api/history?type=other", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPlantDetailSummaryAndBalance(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)
	env.receive(t, "A001", "Mai vàng", 2, 1500)
	_, err := env.svc.RecordDispatch(context.Background(), ledger.DispatchInput{Code: "A001", Quantity: 1})
	require.NoError(t, err)

	status, body := doJSON(t, env.app, "GET", "/api/plants/A001", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 6000.0, body["total_cost"])
	assert.Equal(t, 5.0, body["total_received"])
	assert.Equal(t, 1.0, body["total_dispatched"])
	assert.Len(t, body["receipts"], 2)

	status, body = doJSON(t, env.app, "GET", "/api/plants/A001/summary", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 4.0, body["stock"])
	assert.Equal(t, 1500.0, body["latest_unit_cost"])

	status, body = doJSON(t, env.app, "GET", "/api/plants/A001/balance", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 4.0, body["derived_stock"])
	assert.Equal(t, 0.0, body["drift"])

	status, body = doJSON(t, env.app, "GET", "/api/plants/NOPE/summary", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
}

func TestSummaryWithoutReceipts(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Create(&models.Plant{Code: "X1", Name: "Lẻ"}).Error)

	status, body := doJSON(t, env.app, "GET", "/api/plants/X1/summary", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["latest_unit_cost"])
}

func imageRequest(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestImageUploadReplaceAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)

	resp, err := env.app.Test(imageRequest(t, "/api/plants/A001/image", "mai.png", []byte("first")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	plant, err := ledger.FindPlant(context.Background(), env.db, "A001")
	require.NoError(t, err)
	first := plant.ImagePath
	require.NotEmpty(t, first)

	resp, err = env.app.Test(httptest.NewRequest("GET", "/api/plants/A001/image", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "first", string(raw))

	resp, err = env.app.Test(imageRequest(t, "/api/plants/A001/image", "mai.jpg", []byte("second")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_, err = os.Stat(env.images.Path(first))
	assert.True(t, os.IsNotExist(err), "replaced image should be removed")

	plant, err = ledger.FindPlant(context.Background(), env.db, "A001")
	require.NoError(t, err)
	second := plant.ImagePath

	status, body := doJSON(t, env.app, "DELETE", "/api/plants/A001", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	_, err = os.Stat(env.images.Path(second))
	assert.True(t, os.IsNotExist(err), "deleted plant image should be removed")

	status, _ = doJSON(t, env.app, "DELETE", "/api/plants/A001", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestImageUploadRejections(t *testing.T) {
	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)

	tests := []struct {
		name     string
		path     string
		filename string
		data     []byte
		status   int
	}{
		{name: "wrong type", path: "/api/plants/A001/image", filename: "mai.txt", data: []byte("x"), status: fiber.StatusBadRequest},
		{name: "too large", path: "/api/plants/A001/image", filename: "mai.png", data: bytes.Repeat([]byte("x"), 2048), status: fiber.StatusRequestEntityTooLarge},
		{name: "unknown plant", path: "/api/plants/NOPE/image", filename: "mai.png", data: []byte("x"), status: fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.app.Test(imageRequest(t, tt.path, tt.filename, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	entries, err := os.ReadDir(env.images.dir)
	if err == nil {
		assert.Empty(t, entries, "rejected uploads must not leave files behind")
	}

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/plants/A001/image", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestImageURLHandler(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("webp-bytes"))
	}))
	defer src.Close()

	env := newTestEnv(t)
	env.receive(t, "A001", "Mai vàng", 3, 1000)

	status, body := doJSON(t, env.app, "POST", "/api/plants/A001/image-url", `{"url":"`+src.URL+`/mai"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "/api/plants/A001/image", body["image_url"])

	plant, err := ledger.FindPlant(context.Background(), env.db, "A001")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(plant.ImagePath, ".webp"))

	status, _ = doJSON(t, env.app, "POST", "/api/plants/A001/image-url", `{"url":"ftp://example.com/a.png"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
