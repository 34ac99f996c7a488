package handlers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"flyergen/internal/assets"
	"flyergen/internal/flyer"
	u "flyergen/internal/utils"
)

// FieldLayout optionally selects a layout preset per request.
const FieldLayout = "layout"

// FontSource resolves a font family. It never fails; problems yield a font
// that draws with the built-in face.
type FontSource interface {
	Font(ctx context.Context, name string) assets.Font
}

// LogoSource resolves a company's logo, reporting false when none was found.
type LogoSource interface {
	ResolveLogo(ctx context.Context, company string) (image.Image, bool)
}

// FlyerService bundles configuration and dependencies for flyer generation.
type FlyerService struct {
	Config u.Config

	dir         *assets.Directory
	fonts       FontSource
	logos       LogoSource
	cache       *flyerCache
	compositors map[string]*flyer.Compositor
}

// NewFlyerService creates a FlyerService. rdb is only used when
// cache.flyer_cache_enabled is set and may be nil.
func NewFlyerService(cfg u.Config, dir *assets.Directory, fonts FontSource, logos LogoSource, rdb *redis.Client) (*FlyerService, error) {
	compositors := make(map[string]*flyer.Compositor, 2)
	for _, l := range []flyer.Layout{flyer.Announcement(), flyer.Banner()} {
		c, err := flyer.NewCompositor(l)
		if err != nil {
			return nil, fmt.Errorf("layout %s: %w", l.Name, err)
		}
		compositors[l.Name] = c
	}
	if _, ok := compositors[cfg.Flyer.Preset]; !ok {
		return nil, fmt.Errorf("default layout %q is not a known preset", cfg.Flyer.Preset)
	}

	svc := &FlyerService{
		Config:      cfg,
		dir:         dir,
		fonts:       fonts,
		logos:       logos,
		compositors: compositors,
	}
	if cfg.Cache.FlyerCacheEnabled && rdb != nil {
		svc.cache = &flyerCache{rdb: rdb, ttl: cfg.Cache.FlyerCacheTTL}
	}
	return svc, nil
}

type companyResponse struct {
	Name    string `json:"name"`
	Domain  string `json:"domain"`
	LogoURL string `json:"logo_url"`
}

type generateResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"image_data"`
	Filename  string `json:"filename"`
}

// HandleCompanies lists the company directory sorted by name.
func (svc *FlyerService) HandleCompanies(c *fiber.Ctx) error {
	all := svc.dir.All()
	out := make([]companyResponse, 0, len(all))
	for _, co := range all {
		out = append(out, companyResponse{
			Name:    co.Name,
			Domain:  co.Domain,
			LogoURL: assets.LogoURL(svc.Config.Assets.LogoProvider, co.Domain),
		})
	}
	return c.JSON(fiber.Map{"companies": out})
}

// HandleHealth reports liveness with the current time.
func (svc *FlyerService) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleGenerate validates the multipart submission, renders the flyer and
// returns it as base64 PNG.
func (svc *FlyerService) HandleGenerate(c *fiber.Ctx) error {
	req, layout, err := svc.parseRequest(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	filename := flyer.Filename(req.Name)
	key := flyerCacheKey(layout, svc.Config.Flyer.FontFamily, req)

	if cached := svc.cache.get(ctx, key); cached != nil {
		return c.JSON(generateResponse{Success: true, ImageData: flyer.ToBase64(cached), Filename: filename})
	}

	start := time.Now()
	font := svc.fonts.Font(ctx, svc.Config.Flyer.FontFamily)
	formerLogo, formerOK := svc.logos.ResolveLogo(ctx, req.FormerCompany)
	newLogo, newOK := svc.logos.ResolveLogo(ctx, req.NewCompany)

	img, err := svc.compositors[layout].Render(req, flyer.Assets{
		Font:       font,
		FormerLogo: formerLogo,
		NewLogo:    newLogo,
	})
	if err != nil {
		u.Error("Flyer rendering failed", "layout", layout, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Flyer generation failed")
	}
	data, err := flyer.EncodePNG(img)
	if err != nil {
		u.Error("Flyer encoding failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Flyer generation failed")
	}

	// Degraded renders are not cached so a recovered provider shows up next time.
	if formerOK && newOK && !font.Fallback() {
		svc.cache.set(ctx, key, data)
	}

	u.Info("Flyer generated",
		"filename", filename,
		"layout", layout,
		"former_logo", formerOK,
		"new_logo", newOK,
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)

	return c.JSON(generateResponse{Success: true, ImageData: flyer.ToBase64(data), Filename: filename})
}

// parseRequest extracts and validates the form fields, photo and layout.
func (svc *FlyerService) parseRequest(c *fiber.Ctx) (flyer.Request, string, error) {
	fields := make(map[string]string, len(flyer.TextFields))
	for _, name := range flyer.TextFields {
		fields[name] = c.FormValue(name)
	}

	photo, photoErr := readPhoto(c, svc.Config.Flyer.MaxPhotoBytes)
	present := photo
	if photoErr != nil {
		// A rejected upload was still sent; report missing text fields first.
		present = []byte{0}
	}

	req, err := flyer.NewRequest(fields, present)
	if err != nil {
		var verr *flyer.ValidationError
		if errors.As(err, &verr) {
			return flyer.Request{}, "", fiber.NewError(fiber.StatusBadRequest, verr.Error())
		}
		return flyer.Request{}, "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if photoErr != nil {
		return flyer.Request{}, "", photoErr
	}

	layout := c.FormValue(FieldLayout)
	if layout == "" {
		layout = svc.Config.Flyer.Preset
	}
	if _, ok := svc.compositors[layout]; !ok {
		return flyer.Request{}, "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid layout: %q is not supported", layout))
	}
	return req, layout, nil
}

// readPhoto returns the uploaded profile image, or nil when none was sent.
func readPhoto(c *fiber.Ctx, maxBytes int) ([]byte, error) {
	fh, err := c.FormFile(flyer.FieldProfileImage)
	if err != nil {
		return nil, nil
	}
	if fh.Size > int64(maxBytes) {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("Profile image exceeds %d bytes", maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		u.Warn("Cannot open uploaded photo", "error", err)
		return nil, fiber.NewError(fiber.StatusBadRequest, "Profile image could not be read")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Profile image could not be read")
	}
	if len(data) > maxBytes {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, fmt.Sprintf("Profile image exceeds %d bytes", maxBytes))
	}
	return data, nil
}
