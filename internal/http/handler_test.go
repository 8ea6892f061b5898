package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/postcodes-api/internal/adapter/store/memory"
	"go.ngs.io/postcodes-api/internal/config"
	"go.ngs.io/postcodes-api/internal/domain"
	"go.ngs.io/postcodes-api/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, auth *Authenticator) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := usecase.NewPostcodeUseCase(memory.NewStore(), logger)
	router, err := SetupRouter(uc, RouterConfig{
		RequestTimeout: 5 * time.Second,
		Auth:           auth,
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("SetupRouter: %v", err)
	}
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, router *gin.Engine, code, lat, lon string, headers ...string) {
	t.Helper()
	body := `{"postcode":"` + code + `","latitude":` + lat + `,"longitude":` + lon + `}`
	w := do(t, router, http.MethodPost, "/api/postal-codes", body, headers...)
	if w.Code != http.StatusOK {
		t.Fatalf("seed %s: status %d: %s", code, w.Code, w.Body.String())
	}
}

func TestCalculateDistance(t *testing.T) {
	router := newTestRouter(t, nil)
	seed(t, router, "SW1A 1AA", "51.5035", "-0.1277")
	seed(t, router, "EC2A 2AH", "51.5200", "-0.0800")

	w := do(t, router, http.MethodPost, "/api/postal-codes/distance", `{"postcode1":"SW1A 1AA","postcode2":"EC2A 2AH"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	result := decode[domain.DistanceResult](t, w)
	if result.Unit != "km" {
		t.Errorf("unit: expected km, got %q", result.Unit)
	}
	if result.Location1.Postcode != "SW1A 1AA" || result.Location1.Latitude != 51.5035 {
		t.Errorf("unexpected location1 %+v", result.Location1)
	}
	if result.Location2.Postcode != "EC2A 2AH" || result.Location2.Longitude != -0.08 {
		t.Errorf("unexpected location2 %+v", result.Location2)
	}
	if math.Abs(result.Distance-3.7766) > 1e-3 {
		t.Errorf("distance: expected ~3.7766, got %f", result.Distance)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Errorf("expected a request id header")
	}
}

func TestCalculateDistance_UnknownCode(t *testing.T) {
	router := newTestRouter(t, nil)
	seed(t, router, "SW1A 1AA", "51.5035", "-0.1277")

	w := do(t, router, http.MethodPost, "/api/postal-codes/distance", `{"postcode1":"SW1A 1AA","postcode2":"ZZ99 9ZZ"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	apiErr := decode[APIError](t, w)
	if apiErr.Message != "Postal code not found: ZZ99 9ZZ" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Path != "/api/postal-codes/distance" || apiErr.Status != http.StatusNotFound {
		t.Errorf("unexpected error body %+v", apiErr)
	}
}

func TestCalculateDistance_Validation(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"lowercase postcode", `{"postcode1":"sw1a 1aa","postcode2":"EC2A 2AH"}`, []string{"postcode1"}},
		{"missing second", `{"postcode1":"SW1A 1AA"}`, []string{"postcode2"}},
		{"both invalid", `{"postcode1":"12345","postcode2":"ABC"}`, []string{"postcode1", "postcode2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/postal-codes/distance", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			apiErr := decode[APIError](t, w)
			if apiErr.Error != "Validation Error" {
				t.Errorf("unexpected error kind %q", apiErr.Error)
			}
			if len(apiErr.ValidationErrors) != len(tt.fields) {
				t.Fatalf("expected %d field errors, got %+v", len(tt.fields), apiErr.ValidationErrors)
			}
			for i, f := range tt.fields {
				if apiErr.ValidationErrors[i].Field != f {
					t.Errorf("field %d: expected %s, got %s", i, f, apiErr.ValidationErrors[i].Field)
				}
			}
		})
	}
}

func TestCalculateDistance_MalformedJSON(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(t, router, http.MethodPost, "/api/postal-codes/distance", `{"postcode1":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if apiErr := decode[APIError](t, w); apiErr.Error != "Bad Request" {
		t.Errorf("unexpected error kind %q", apiErr.Error)
	}
}

func TestCreateOrUpdateThenGet(t *testing.T) {
	router := newTestRouter(t, nil)
	seed(t, router, "NW1 6XE", "51.5322", "-0.1277")
	seed(t, router, "NW1 6XE", "51.5330", "-0.1280")

	w := do(t, router, http.MethodGet, "/api/postal-codes/"+url.PathEscape("NW1 6XE"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"latitude":51.533`) || !strings.Contains(body, `"longitude":-0.128`) {
		t.Errorf("expected updated numeric coordinates, got %s", body)
	}

	list := do(t, router, http.MethodGet, "/api/postal-codes", "")
	page := decode[domain.Page](t, list)
	if page.TotalCount != 1 || page.Items[0].ID != 1 {
		t.Errorf("expected a single record updated in place, got %+v", page)
	}
}

func TestCreateOrUpdate_Invalid(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"latitude out of range", `{"postcode":"SW1A 1AA","latitude":91,"longitude":0}`},
		{"longitude out of range", `{"postcode":"SW1A 1AA","latitude":0,"longitude":-180.5}`},
		{"missing latitude", `{"postcode":"SW1A 1AA","longitude":0}`},
		{"bad postcode", `{"postcode":"NOT A CODE","latitude":0,"longitude":0}`},
		{"latitude not a number", `{"postcode":"SW1A 1AA","latitude":"north","longitude":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/postal-codes", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetMapping_NotFound(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(t, router, http.MethodGet, "/api/postal-codes/"+url.PathEscape("ZZ99 9ZZ"), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateMapping(t *testing.T) {
	router := newTestRouter(t, nil)
	path := "/api/postal-codes/" + url.PathEscape("EC2A 2AH")

	w := do(t, router, http.MethodPut, path, `{"latitude":51.52,"longitude":-0.08}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("update of missing code: expected 404, got %d", w.Code)
	}
	if get := do(t, router, http.MethodGet, path, ""); get.Code != http.StatusNotFound {
		t.Fatalf("strict update must not create, got %d", get.Code)
	}

	seed(t, router, "EC2A 2AH", "51.5200", "-0.0800")
	w = do(t, router, http.MethodPut, path, `{"latitude":"51.5210000","longitude":-0.081}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	pc := decode[domain.PostalCode](t, w)
	if pc.Postcode != "EC2A 2AH" || pc.Latitude.String() != "51.521" || pc.Longitude.String() != "-0.081" {
		t.Errorf("unexpected record %+v", pc)
	}
}

func TestListMappings(t *testing.T) {
	router := newTestRouter(t, nil)
	codes := []string{"W1A 0AX", "B33 8TH", "M1 1AE", "SW1A 1AA", "EC2A 2AH"}
	for i, code := range codes {
		seed(t, router, code, "5"+string(rune('0'+i))+".5", "-1.5")
	}

	w := do(t, router, http.MethodGet, "/api/postal-codes?page=1&size=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	page := decode[domain.Page](t, w)
	if page.TotalCount != 5 || page.TotalPages != 3 || page.PageIndex != 1 || page.PageSize != 2 {
		t.Errorf("unexpected page metadata %+v", page)
	}
	if len(page.Items) != 2 || page.Items[0].Postcode != "M1 1AE" || page.Items[1].Postcode != "SW1A 1AA" {
		t.Errorf("unexpected page items %+v", page.Items)
	}

	w = do(t, router, http.MethodGet, "/api/postal-codes?size=5&sortBy=latitude", "")
	page = decode[domain.Page](t, w)
	for i, code := range codes {
		if page.Items[i].Postcode != code {
			t.Errorf("latitude order position %d: expected %s, got %s", i, code, page.Items[i].Postcode)
		}
	}
}

func TestListMappings_FarPages(t *testing.T) {
	router := newTestRouter(t, nil)
	seed(t, router, "SW1A 1AA", "51.5035", "-0.1277")
	seed(t, router, "EC2A 2AH", "51.5200", "-0.0800")

	w := do(t, router, http.MethodGet, "/api/postal-codes?page=4611686018427387904&size=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("far page: status %d: %s", w.Code, w.Body.String())
	}
	if page := decode[domain.Page](t, w); len(page.Items) != 0 || page.TotalCount != 2 {
		t.Errorf("far page: expected empty content, got %+v", page)
	}

	w = do(t, router, http.MethodGet, "/api/postal-codes?size=9223372036854775807", "")
	if w.Code != http.StatusOK {
		t.Fatalf("huge size: status %d: %s", w.Code, w.Body.String())
	}
	if page := decode[domain.Page](t, w); len(page.Items) != 2 || page.TotalPages != 1 {
		t.Errorf("huge size: expected one page of 2 items, got %+v", page)
	}
}

func TestListMappings_BadParameters(t *testing.T) {
	router := newTestRouter(t, nil)

	for _, query := range []string{"page=-1", "size=0", "size=abc", "sortBy=city"} {
		w := do(t, router, http.MethodGet, "/api/postal-codes?"+query, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, w.Code)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Errorf("unexpected health response %d %s", w.Code, w.Body.String())
	}
}

func TestRequestID_ReusesInboundHeader(t *testing.T) {
	router := newTestRouter(t, nil)
	id := "2f1d7c7e-8a7b-4f0e-9d55-1c8f0b6f4a11"

	w := do(t, router, http.MethodGet, "/health", "", requestIDHeader, id)
	if got := w.Header().Get(requestIDHeader); got != id {
		t.Errorf("expected request id %s, got %s", id, got)
	}

	w = do(t, router, http.MethodGet, "/health", "", requestIDHeader, "not-a-uuid")
	if got := w.Header().Get(requestIDHeader); got == "not-a-uuid" || got == "" {
		t.Errorf("expected a fresh request id, got %q", got)
	}
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	auth, err := NewAuthenticator(config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Username:  "admin",
		Password:  "hunter2",
	})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return auth
}

func TestAuth_ProtectsPostalCodes(t *testing.T) {
	router := newTestRouter(t, newTestAuthenticator(t))

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "Authentication required: Missing Authorization header"},
		{"wrong scheme", "Basic YWRtaW46aHVudGVyMg==", "Authentication required: Invalid Authorization header format"},
		{"garbage token", "Bearer not.a.token", "Authentication failed: Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			w := do(t, router, http.MethodGet, "/api/postal-codes", "", headers...)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
			if apiErr := decode[APIError](t, w); apiErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, apiErr.Message)
			}
		})
	}

	if w := do(t, router, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health check must stay public, got %d", w.Code)
	}
}

func TestAuth_LoginFlow(t *testing.T) {
	router := newTestRouter(t, newTestAuthenticator(t))

	w := do(t, router, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", w.Code, w.Body.String())
	}
	login := decode[loginResponse](t, w)
	if login.Token == "" || login.TokenType != "Bearer" {
		t.Fatalf("unexpected login response %+v", login)
	}

	bearer := []string{"Authorization", "Bearer " + login.Token}
	seed(t, router, "SW1A 1AA", "51.5035", "-0.1277", bearer...)
	w = do(t, router, http.MethodGet, "/api/postal-codes/"+url.PathEscape("SW1A 1AA"), "", bearer...)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated lookup: expected 200, got %d", w.Code)
	}
}

func TestAuthenticator_RejectsExpiredAndForeignTokens(t *testing.T) {
	auth := newTestAuthenticator(t)
	token, _, err := auth.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if subject, err := auth.Verify(token); err != nil || subject != "admin" {
		t.Fatalf("Verify: %q, %v", subject, err)
	}

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := auth.Verify(token); err == nil {
		t.Errorf("expected expired token to be rejected")
	}

	other := newTestAuthenticator(t)
	other.secret = []byte("other-secret")
	if _, err := other.Verify(token); err == nil {
		t.Errorf("expected token signed with another secret to be rejected")
	}
}
