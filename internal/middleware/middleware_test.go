package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/openlabtz/lims-backend/internal/utils"
	"github.com/openlabtz/lims-backend/internal/workflow"
)

const testSecret = "middleware-test-secret"

func doRequest(t *testing.T, mw echo.MiddlewareFunc, token string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec, c
}

func TestJWTAuthValidToken(t *testing.T) {
	at, err := utils.NewAccessToken(testSecret, 42, workflow.RoleRegistrar, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	rec, c := doRequest(t, JWTAuth(testSecret), at.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got, ok := c.Get("user_id").(uint64); !ok || got != 42 {
		t.Fatalf("user_id = %v, want 42", c.Get("user_id"))
	}
	if got, ok := c.Get("role").(workflow.Role); !ok || got != workflow.RoleRegistrar {
		t.Fatalf("role = %v, want Registrar", c.Get("role"))
	}
}

func TestJWTAuthMissingToken(t *testing.T) {
	rec, _ := doRequest(t, JWTAuth(testSecret), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTAuthWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("other-secret", 42, workflow.RoleRegistrar, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	rec, _ := doRequest(t, JWTAuth(testSecret), at.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		role    interface{}
		allowed []workflow.Role
		want    int
	}{
		{"allowed", workflow.RoleHOD, []workflow.Role{workflow.RoleHOD}, http.StatusOK},
		{"one of several", workflow.RoleAdmin, []workflow.Role{workflow.RoleHOD, workflow.RoleAdmin}, http.StatusOK},
		{"denied", workflow.RoleTechnician, []workflow.Role{workflow.RoleDirector}, http.StatusForbidden},
		{"missing", nil, []workflow.Role{workflow.RoleAdmin}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tc.role != nil {
				c.Set("role", tc.role)
			}
			handler := RequireRole(tc.allowed...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			if err := handler(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEncodeDecodePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	body := []byte(`{"success":true}`)
	bs, err := encodePayload(http.StatusOK, hdr, body)
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	status, gotHdr, gotBody, ok := decodePayload(bs)
	if !ok {
		t.Fatalf("decodePayload failed")
	}
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if gotHdr.Get("Content-Type") != "application/json" {
		t.Fatalf("header lost: %v", gotHdr)
	}
	if string(gotBody) != string(body) {
		t.Fatalf("body = %q, want %q", gotBody, body)
	}
}

func TestDecodePayloadRejectsShortInput(t *testing.T) {
	if _, _, _, ok := decodePayload([]byte{1, 2, 3}); ok {
		t.Fatalf("expected short payload to be rejected")
	}
}
