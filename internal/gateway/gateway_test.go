package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/testutil"
)

type stubProbe struct {
	raw map[Capability]string
	err error
}

func (p stubProbe) Query(_ context.Context, c Capability) (json.RawMessage, error) {
	if p.err != nil {
		return nil, p.err
	}
	v, ok := p.raw[c]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return json.RawMessage(v), nil
}

func fixedCamera(data []byte, err error) Camera {
	return CameraFunc(func(context.Context, CaptureRequest) ([]byte, error) { return data, err })
}

func newTestGateway(t *testing.T, opts ...Option) *Gateway {
	t.Helper()
	_, files := testutil.TestFiles(t)
	return New(files, opts...)
}

func TestRequestCameraAccess(t *testing.T) {
	ctx := context.Background()

	g := newTestGateway(t, WithProbe(stubProbe{raw: map[Capability]string{CapabilityCamera: `{"camera":"granted"}`}}))
	if got := g.RequestCameraAccess(ctx); got != Granted {
		t.Errorf("access = %v, want granted", got)
	}

	g = newTestGateway(t, WithProbe(stubProbe{err: errors.New("bridge down")}))
	if got := g.RequestCameraAccess(ctx); got != Denied {
		t.Errorf("access on query failure = %v, want denied", got)
	}

	g = newTestGateway(t)
	if got := g.RequestCameraAccess(ctx); got != Denied {
		t.Errorf("access without probe = %v, want denied", got)
	}
}

func TestRequestLocationAccessFallsBackToFix(t *testing.T) {
	ctx := context.Background()
	failing := WithProbe(stubProbe{err: errors.New("unsupported")})

	g := newTestGateway(t, failing, WithLocator(StaticLocator{Coords: models.Coords{Lat: 1, Lng: 2}}))
	if got := g.RequestLocationAccess(ctx); got != Granted {
		t.Errorf("access with working locator = %v, want granted", got)
	}

	g = newTestGateway(t, failing)
	if got := g.RequestLocationAccess(ctx); got != Denied {
		t.Errorf("access without locator = %v, want denied", got)
	}

	g = newTestGateway(t,
		WithProbe(stubProbe{raw: map[Capability]string{CapabilityLocation: `"denied"`}}),
		WithLocator(StaticLocator{Coords: models.Coords{Lat: 1, Lng: 2}}))
	if got := g.RequestLocationAccess(ctx); got != Denied {
		t.Errorf("reported denial overridden by locator: %v", got)
	}
}

func TestCapturePhotoClassification(t *testing.T) {
	ctx := context.Background()

	g := newTestGateway(t, WithCamera(fixedCamera(testutil.JPEG, nil)))
	data, err := g.CapturePhoto(ctx, false)
	if err != nil || len(data) == 0 {
		t.Fatalf("CapturePhoto: %v", err)
	}

	g = newTestGateway(t, WithCamera(fixedCamera(nil, &CaptureError{Code: "USER_CANCEL"})))
	if _, err := g.CapturePhoto(ctx, false); !errors.Is(err, apperr.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}

	g = newTestGateway(t, WithCamera(fixedCamera(nil, nil)))
	if _, err := g.CapturePhoto(ctx, false); !errors.Is(err, apperr.ErrCancelled) {
		t.Errorf("empty capture err = %v, want ErrCancelled", err)
	}

	g = newTestGateway(t, WithCamera(fixedCamera(nil, errors.New("sensor fault"))))
	_, err = g.CapturePhoto(ctx, false)
	if err == nil || errors.Is(err, apperr.ErrCancelled) {
		t.Errorf("err = %v, want genuine failure", err)
	}
}

func TestCapturePhotoUsesPromptBackend(t *testing.T) {
	g := newTestGateway(t,
		WithCamera(fixedCamera([]byte("direct"), nil)),
		WithPrompt(fixedCamera([]byte("picked"), nil)))
	data, err := g.CapturePhoto(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "picked" {
		t.Errorf("data = %q, want prompt backend output", data)
	}
}

func TestGetLocationFixNeverFails(t *testing.T) {
	ctx := context.Background()

	slow := LocatorFunc(func(ctx context.Context, _ LocationRequest) (models.Coords, error) {
		<-ctx.Done()
		return models.Coords{}, ctx.Err()
	})
	g := newTestGateway(t, WithLocator(slow))
	start := time.Now()
	if _, ok := g.GetLocationFix(ctx, 30*time.Millisecond); ok {
		t.Error("expected no fix on timeout")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not enforced")
	}

	g = newTestGateway(t, WithLocator(StaticLocator{Coords: models.Coords{Lat: 91, Lng: 0}}))
	if _, ok := g.GetLocationFix(ctx, time.Second); ok {
		t.Error("out of range latitude accepted")
	}

	g = newTestGateway(t, WithLocator(StaticLocator{Coords: models.Coords{Lat: 48.85, Lng: 2.35}}))
	c, ok := g.GetLocationFix(ctx, time.Second)
	if !ok || c.Lat != 48.85 || c.Lng != 2.35 {
		t.Errorf("fix = %+v ok=%v", c, ok)
	}
}

func TestWriteReadDeleteFile(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1700000000000)
	g := newTestGateway(t, WithClock(func() time.Time { return now }))

	p, err := g.WriteFileBytes(ctx, testutil.PNG)
	if err != nil {
		t.Fatalf("WriteFileBytes: %v", err)
	}
	if !strings.HasPrefix(p, "photos/photo_1700000000000_") || !strings.HasSuffix(p, ".png") {
		t.Errorf("path = %q", p)
	}

	got, err := g.ReadFileBytes(ctx, p)
	if err != nil || string(got) != string(testutil.PNG) {
		t.Fatalf("ReadFileBytes: %v", err)
	}

	files, err := g.ListFiles(ctx)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles = %v, %v", files, err)
	}

	if err := g.DeleteFile(ctx, p); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if _, err := g.ReadFileBytes(ctx, p); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("read after delete: %v, want ErrNotFound", err)
	}
	if err := g.DeleteFile(ctx, p); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestWriteFileNamesAreUnique(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1)
	g := newTestGateway(t, WithClock(func() time.Time { return now }))
	a, err := g.WriteFileBytes(ctx, testutil.JPEG)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.WriteFileBytes(ctx, testutil.JPEG)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("same path for two writes in the same millisecond: %s", a)
	}
	if !strings.HasSuffix(a, ".jpeg") {
		t.Errorf("path = %q, want .jpeg", a)
	}
}

func TestKVProbeRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewKVProbe(testutil.TestKV(t))

	if _, err := p.Query(ctx, CapabilityCamera); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unreported query err = %v", err)
	}
	if err := p.Report(ctx, CapabilityCamera, json.RawMessage(`{"camera":"limited"}`)); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := p.Report(ctx, CapabilityCamera, json.RawMessage(`{oops`)); err == nil {
		t.Error("invalid payload accepted")
	}
	g := newTestGateway(t, WithProbe(p))
	if got := g.RequestCameraAccess(ctx); got != Granted {
		t.Errorf("access = %v, want granted", got)
	}
}
