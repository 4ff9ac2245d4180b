// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes geocam photo tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/geocam/internal/apperr"
	"github.com/starford/geocam/internal/capture"
	"github.com/starford/geocam/internal/geocode"
	"github.com/starford/geocam/internal/markers"
	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/photostore"
)

// Deps are the components the tools operate on. Resolver may be nil, which
// disables resolve_address.
type Deps struct {
	Store    *photostore.Store
	Workflow *capture.Workflow
	Resolver geocode.Resolver
	Layout   markers.Options
}

// Server wraps the MCP server with geocam tools.
type Server struct {
	mcp *server.MCPServer
	Deps
}

// New creates a new MCP server with all geocam tools registered.
func New(d Deps) *Server {
	s := &Server{Deps: d}

	s.mcp = server.NewMCPServer(
		"geocam",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("list_photos",
		mcp.WithDescription("List photos newest first with their coordinates and addresses."),
		mcp.WithBoolean("favorites", mcp.Description("Only liked photos")),
	), s.listPhotos)

	s.mcp.AddTool(mcp.NewTool("get_photo",
		mcp.WithDescription("Get one photo's metadata by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.getPhoto)

	s.mcp.AddTool(mcp.NewTool("toggle_like",
		mcp.WithDescription("Flip the liked flag of a photo."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.toggleLike)

	s.mcp.AddTool(mcp.NewTool("delete_photo",
		mcp.WithDescription("Delete a photo and its image file."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.deletePhoto)

	s.mcp.AddTool(mcp.NewTool("map_markers",
		mcp.WithDescription("Map marker positions for geotagged photos, with overlapping markers spread apart."),
	), s.mapMarkers)

	s.mcp.AddTool(mcp.NewTool("resolve_address",
		mcp.WithDescription("Reverse geocode a geotagged photo and store its address."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Photo id")),
	), s.resolveAddress)

	s.mcp.AddTool(mcp.NewTool("capture_photo",
		mcp.WithDescription("Capture a photo with the device camera, geotag it and save it."),
		mcp.WithBoolean("prompt", mcp.Description("Use the system picker instead of the camera")),
	), s.capturePhoto)

	s.mcp.AddTool(mcp.NewTool("import_photo",
		mcp.WithDescription("Import an image from a base64 data URI or an http(s) URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or https://...")),
		mcp.WithNumber("lat", mcp.Description("Latitude to attach")),
		mcp.WithNumber("lng", mcp.Description("Longitude to attach")),
	), s.importPhoto)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// photoView is the tool-facing shape of a photo; image bytes are left out.
type photoView struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"createdAt"`
	Liked     bool           `json:"liked"`
	FilePath  string         `json:"filePath"`
	Coords    *models.Coords `json:"coords,omitempty"`
	Address   string         `json:"address,omitempty"`
}

func view(p models.Photo) photoView {
	return photoView{
		ID:        p.ID,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Liked:     p.Liked,
		FilePath:  p.FilePath,
		Coords:    p.Coords,
		Address:   p.Address,
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPhotos(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	photos := s.Store.GetAll()
	if req.GetBool("favorites", false) {
		photos = s.Store.Favorites()
	}
	views := make([]photoView, len(photos))
	for i, p := range photos {
		views[i] = view(p)
	}
	return jsonResult(views)
}

func (s *Server) getPhoto(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok := s.Store.GetByID(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(view(p))
}

func (s *Server) toggleLike(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok, err := s.Store.ToggleLike(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(view(p))
}

func (s *Server) deletePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.Store.Remove(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) mapMarkers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(markers.Layout(markers.FromPhotos(s.Store.GetAll()), s.Layout))
}

func (s *Server) resolveAddress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.Resolver == nil {
		return mcp.NewToolResultError("reverse geocoding is disabled"), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok := s.Store.GetByID(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if p.Coords == nil {
		return mcp.NewToolResultError("photo has no coordinates"), nil
	}
	if p.Address != "" {
		return mcp.NewToolResultText(p.Address), nil
	}
	addr, ok := s.Resolver.Resolve(ctx, p.Coords.Lat, p.Coords.Lng)
	if !ok {
		return mcp.NewToolResultError("address could not be resolved"), nil
	}
	if _, err := s.Store.SetAddress(ctx, id, addr); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(addr), nil
}

func (s *Server) capturePhoto(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.Workflow.Take(ctx, req.GetBool("prompt", false))
	if err != nil {
		if errors.Is(err, apperr.ErrBusy) {
			return mcp.NewToolResultError("a capture is already in progress"), nil
		}
		if errors.Is(err, apperr.ErrPermissionDenied) {
			return mcp.NewToolResultError("camera permission denied"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to save photo: %v", err)), nil
	}
	switch res.Status {
	case capture.Cancelled:
		return mcp.NewToolResultText("capture cancelled"), nil
	case capture.Failed:
		return mcp.NewToolResultError(fmt.Sprintf("capture failed: %v", res.Err)), nil
	}
	return jsonResult(view(res.Photo))
}
