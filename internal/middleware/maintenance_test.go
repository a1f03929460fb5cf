package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vorbereitung/api/internal/models"
)

type fakeSettings struct {
	active bool
	err    error
}

func (f *fakeSettings) MaintenanceActive(_ context.Context) (bool, error) {
	return f.active, f.err
}

func maintenanceRouter(settings *fakeSettings, user *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if user != nil {
		r.Use(func(c *gin.Context) {
			c.Set(CtxUser, *user)
		})
	}
	r.Use(Maintenance(settings, zerolog.Nop()))
	r.GET("/", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r http.Handler) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w.Code
}

func TestMaintenanceInactivePassesThrough(t *testing.T) {
	if code := hit(maintenanceRouter(&fakeSettings{active: false}, nil)); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestMaintenanceBlocksAnonymousAndRegularUsers(t *testing.T) {
	settings := &fakeSettings{active: true}

	if code := hit(maintenanceRouter(settings, nil)); code != http.StatusServiceUnavailable {
		t.Errorf("anonymous status = %d, want 503", code)
	}

	user := models.User{ID: "u1", Role: models.UserRoleUser, IsActive: true}
	if code := hit(maintenanceRouter(settings, &user)); code != http.StatusServiceUnavailable {
		t.Errorf("user status = %d, want 503", code)
	}
}

func TestMaintenanceAdminBypass(t *testing.T) {
	admin := models.User{ID: "a1", Role: models.UserRoleAdmin, IsActive: true}
	if code := hit(maintenanceRouter(&fakeSettings{active: true}, &admin)); code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", code)
	}
}

func TestMaintenanceFailsOpenOnReadError(t *testing.T) {
	settings := &fakeSettings{err: errors.New("db down")}
	if code := hit(maintenanceRouter(settings, nil)); code != http.StatusOK {
		t.Errorf("status = %d, want 200 on read error", code)
	}
}

// Toggling the flag takes effect on the next request without restarting
// anything, the middleware re-reads it every time.
func TestMaintenanceToggleIsImmediate(t *testing.T) {
	settings := &fakeSettings{active: false}
	router := maintenanceRouter(settings, nil)

	if code := hit(router); code != http.StatusOK {
		t.Fatalf("before toggle status = %d", code)
	}
	settings.active = true
	if code := hit(router); code != http.StatusServiceUnavailable {
		t.Fatalf("after toggle status = %d, want 503", code)
	}
	settings.active = false
	if code := hit(router); code != http.StatusOK {
		t.Fatalf("after untoggle status = %d, want 200", code)
	}
}
