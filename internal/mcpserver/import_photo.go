package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/geocam/internal/imagefmt"
	"github.com/starford/geocam/internal/models"
)

const maxImageSize = 25 << 20 // 25 MB

// allowLoopback lets tests fetch from httptest servers.
var allowLoopback = false

func (s *Server) importPhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURI(rawURL)
	} else {
		data, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(data) > maxImageSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxImageSize)), nil
	}
	if err := imagefmt.Validate(data); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	coords, err := argCoords(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var p models.Photo
	if coords != nil {
		p, err = s.Workflow.ImportAt(ctx, data, coords)
	} else {
		p, err = s.Workflow.Import(ctx, data)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save photo: %v", err)), nil
	}

	out, _ := json.Marshal(view(p))
	return mcp.NewToolResultText(string(out)), nil
}

func argCoords(req mcp.CallToolRequest) (*models.Coords, error) {
	args := req.GetArguments()
	_, hasLat := args["lat"]
	_, hasLng := args["lng"]
	if !hasLat && !hasLng {
		return nil, nil
	}
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return nil, fmt.Errorf("lat and lng must be given together: %w", err)
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return nil, fmt.Errorf("lat and lng must be given together: %w", err)
	}
	c := models.Coords{Lat: lat, Lng: lng}
	if !c.Valid() {
		return nil, fmt.Errorf("coordinates out of range: %v,%v", lat, lng)
	}
	return &c, nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, fmt.Errorf("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("only base64 data URIs are supported")
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	if _, ok := imagefmt.ExtForMIME(mime); !ok {
		return nil, fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, nil
}

// fetchHTTP downloads an image from an HTTP/HTTPS URL with security checks.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxImageSize)
	}
	return data, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() && !allowLoopback {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
