package gateway

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/starford/geocam/internal/apperr"
)

// fakeGPSD accepts one connection, waits for the WATCH command and replays lines.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		for _, l := range lines {
			if _, err := conn.Write([]byte(l + "\n")); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestGPSDLocatorFix(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
		`not json`,
		`{"class":"TPV","mode":2,"lat":52.52,"lon":13.405}`,
	)
	c, err := GPSDLocator{Addr: addr}.Fix(context.Background(), LocationRequest{})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if c.Lat != 52.52 || c.Lng != 13.405 {
		t.Errorf("coords = %+v", c)
	}
}

func TestGPSDLocatorHighAccuracyNeeds3D(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"TPV","mode":2,"lat":1,"lon":1}`,
		`{"class":"TPV","mode":3,"lat":2,"lon":3}`,
	)
	c, err := GPSDLocator{Addr: addr}.Fix(context.Background(), LocationRequest{HighAccuracy: true})
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if c.Lat != 2 || c.Lng != 3 {
		t.Errorf("coords = %+v, want the 3D fix", c)
	}
}

func TestGPSDLocatorNoFix(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":1}`)
	_, err := GPSDLocator{Addr: addr}.Fix(context.Background(), LocationRequest{})
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestGPSDLocatorDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	if _, err := (GPSDLocator{Addr: addr}).Fix(context.Background(), LocationRequest{}); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestGPSDLocatorTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// hold the connection open without sending anything
		time.Sleep(time.Second)
		conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = GPSDLocator{Addr: ln.Addr().String()}.Fix(ctx, LocationRequest{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Fix took %v, deadline not honoured", time.Since(start))
	}
}
