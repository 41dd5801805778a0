package httpapi

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"kidscanvas/internal/access"
	"kidscanvas/internal/domain"
)

func newTestApp(err error) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return handleError(c, err)
	})
	return app
}

func doGet(t *testing.T, app *fiber.App) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, "/boom", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHandleError_NotFoundMapsTo404(t *testing.T) {
	app := newTestApp(domain.NewNotFoundError("room_not_found", uuid.New()))
	status, _ := doGet(t, app)
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestHandleError_ConflictCarriesStrokeIDs(t *testing.T) {
	strokeID := uuid.New()
	app := newTestApp(&domain.ConflictError{StrokeIDs: []uuid.UUID{strokeID}})
	status, body := doGet(t, app)
	if status != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if _, ok := body["stroke_ids"]; !ok {
		t.Fatalf("expected stroke_ids field in body, got %v", body)
	}
}

func TestHandleError_ValidationCarriesReasons(t *testing.T) {
	app := newTestApp(&domain.ValidationError{Message: "rejected", Reasons: []string{"violence"}})
	status, body := doGet(t, app)
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
	if _, ok := body["reasons"]; !ok {
		t.Fatalf("expected reasons field in body, got %v", body)
	}
}

func TestHandleError_TokenExpiredMapsTo401WithDistinctBody(t *testing.T) {
	app := newTestApp(access.ErrTokenExpired)
	status, body := doGet(t, app)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if body["error"] != "token_expired" {
		t.Fatalf("expected token_expired error body, got %v", body)
	}
}

func TestHandleError_UnmappedErrorDefaultsTo500(t *testing.T) {
	app := newTestApp(errBoom{})
	status, _ := doGet(t, app)
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
