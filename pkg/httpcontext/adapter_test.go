package httpcontext

import (
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskify/pkg/logger"
)

func TestAttachPropagatesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(HeaderRequestID, "abc-123")
	rc.Request.Header.SetUserAgent("taskify-test")
	rc.SetUserValue(UserValueUserID, "user-1")

	ctx, cancel := NewAdapter(time.Second).Attach(&rc)
	defer cancel()

	if got := appLogger.RequestID(ctx); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
	if got := string(rc.Response.Header.Peek(HeaderRequestID)); got != "abc-123" {
		t.Fatalf("response header = %q", got)
	}
	if ua, _ := ctx.Value(KeyUserAgent).(string); ua != "taskify-test" {
		t.Fatalf("user agent = %q", ua)
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatal("context has no deadline")
	}
}

func TestRequestIDGeneratedOnce(t *testing.T) {
	var rc fasthttp.RequestCtx
	first := RequestID(&rc)
	if first == "" || RequestID(&rc) != first {
		t.Fatal("generated request id should be stable per request")
	}
}

func TestDefaultTimeout(t *testing.T) {
	a := NewAdapter(0)
	if a.timeout != 5*time.Second {
		t.Fatalf("timeout = %v", a.timeout)
	}
}
