package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestHelpers(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "10.0.0.9:5123"

	assert.Equal(t, "10.0.0.9", IPFromRequest(req))
	_, err := uuid.Parse(RequestIDFromRequest(req))
	assert.NoError(t, err)
	assert.Empty(t, DeviceIDFromRequest(req))

	req.Header.Set("X-Real-IP", "172.16.0.4")
	assert.Equal(t, "172.16.0.4", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", " , 203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Request-Id", "req-9")
	req.Header.Set("X-Device-Id", "phone")
	assert.Equal(t, "203.0.113.7", IPFromRequest(req))
	assert.Equal(t, "req-9", RequestIDFromRequest(req))
	assert.Equal(t, "phone", DeviceIDFromRequest(req))
}

func TestBuildHeadersSkipsEmpty(t *testing.T) {
	assert.Equal(t, map[string]string{HeaderRequestID: "r1"}, BuildHeaders("r1", "", ""))
	assert.Len(t, BuildHeaders("r1", "t1", "d1"), 3)
	assert.Empty(t, BuildHeaders("", "", ""))
}
