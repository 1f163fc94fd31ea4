package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                { return s.name }
func (s stubChecker) Check(context.Context) error { return s.err }

func TestCheckerRegistry_Check(t *testing.T) {
	tests := []struct {
		name     string
		critical []stubChecker
		optional []stubChecker
		want     Status
	}{
		{name: "all healthy", critical: []stubChecker{{name: "mongodb"}}, optional: []stubChecker{{name: "redis"}}, want: StatusHealthy},
		{name: "optional down", critical: []stubChecker{{name: "mongodb"}}, optional: []stubChecker{{name: "redis", err: errors.New("refused")}}, want: StatusDegraded},
		{name: "critical down", critical: []stubChecker{{name: "mongodb", err: errors.New("refused")}}, optional: []stubChecker{{name: "redis"}}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.critical {
				r.Register(c)
			}
			for _, c := range tt.optional {
				r.RegisterOptional(c)
			}

			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.critical)+len(tt.optional))
		})
	}
}

func TestCheckerRegistry_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewCheckerRegistry()
	r.Register(stubChecker{name: "mongodb", err: errors.New("refused")})

	router := gin.New()
	router.GET("/health", r.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Checks["mongodb"].Status)
	assert.Equal(t, "refused", body.Checks["mongodb"].Message)
}

func TestKafkaChecker_NoBrokers(t *testing.T) {
	err := NewKafkaChecker(nil).Check(context.Background())
	assert.EqualError(t, err, "no kafka brokers configured")
}
