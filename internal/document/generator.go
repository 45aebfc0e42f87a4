// Package document assembles an order tree into a PDF: image embedding
// under the size policy, HTML templating, Gotenberg rendering and blob
// persistence under a stable file code.
package document

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/meridian-events/meridian-beo/internal/platform/storage"
	"github.com/meridian-events/meridian-beo/internal/shared"
)

// Renderer turns HTML into PDF bytes. *report.Client satisfies this.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// AssetRef points at one uploaded attachment in the blob store.
type AssetRef struct {
	Name string
	Key  string
}

// ScheduleLine is one schedule row of the rendered document.
type ScheduleLine struct {
	Title    string
	Location string
	StartsAt time.Time
	EndsAt   time.Time
}

// BeoSection is one department's execution block.
type BeoSection struct {
	Department  string
	PICName     string
	PackageName string
	Notes       string
	Attachments []AssetRef
}

// OrderDocument is the fully assembled input for one generation run.
type OrderDocument struct {
	FileCode     string
	StorageKey   string
	OrderCode    string
	EventName    string
	CustomerName string
	StatusLabel  string
	PreparedBy   string
	Schedules    []ScheduleLine
	Beos         []BeoSection
	Attachments  []AssetRef
}

// AssetSkip records one attachment left out of the document.
type AssetSkip struct {
	Name   string
	Reason SkipReason
}

// Result describes a successfully generated and persisted document.
type Result struct {
	StorageKey  string
	SizeBytes   int64
	Checksum    string
	GeneratedAt time.Time
	Skips       []AssetSkip
}

// Generator renders and persists order documents.
type Generator struct {
	renderer Renderer
	store    storage.Store
	logger   *slog.Logger

	logoLeftPaths  []string
	logoRightPaths []string

	now func() time.Time
}

// NewGenerator constructs a Generator. Logo path lists are tried in
// order at render time; empty lists fall back to the placeholder pixel.
func NewGenerator(renderer Renderer, store storage.Store, logger *slog.Logger, logoLeft, logoRight []string) *Generator {
	return &Generator{
		renderer:       renderer,
		store:          store,
		logger:         logger,
		logoLeftPaths:  logoLeft,
		logoRightPaths: logoRight,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Generate produces the PDF for doc and writes it to doc.StorageKey.
// Asset failures degrade to skips; a render or storage failure is fatal
// and leaves no partial file (the write happens only after the full
// render has succeeded).
func (g *Generator) Generate(ctx context.Context, doc OrderDocument) (Result, error) {
	if g == nil || g.renderer == nil || g.store == nil {
		return Result{}, errors.New("document: generator not configured")
	}
	if doc.FileCode == "" || doc.StorageKey == "" {
		return Result{}, fmt.Errorf("%w: file code and storage key required", shared.ErrValidation)
	}

	generatedAt := g.now()
	var skips []AssetSkip

	embedAll := func(refs []AssetRef) []EmbeddedImage {
		var images []EmbeddedImage
		for _, ref := range refs {
			res := g.embedAsset(ctx, ref)
			if !res.Embedded() {
				skips = append(skips, AssetSkip{Name: ref.Name, Reason: res.Skip})
				g.logger.Info("attachment skipped",
					slog.String("file_code", doc.FileCode),
					slog.String("name", ref.Name),
					slog.String("reason", string(res.Skip)))
				continue
			}
			images = append(images, res.Image)
		}
		return images
	}

	page := pageData{
		FileCode:     doc.FileCode,
		OrderCode:    doc.OrderCode,
		EventName:    doc.EventName,
		CustomerName: doc.CustomerName,
		StatusLabel:  doc.StatusLabel,
		PreparedBy:   doc.PreparedBy,
		GeneratedAt:  generatedAt,
		LogoLeft:     ResolveLogo(g.logoLeftPaths),
		LogoRight:    ResolveLogo(g.logoRightPaths),
		Schedules:    doc.Schedules,
		OrderImages:  embedAll(doc.Attachments),
	}
	for _, beo := range doc.Beos {
		page.Beos = append(page.Beos, beoSection{
			Department: beo.Department,
			PIC:        beo.PICName,
			Package:    beo.PackageName,
			Notes:      beo.Notes,
			Images:     embedAll(beo.Attachments),
		})
	}

	html, err := renderHTML(page)
	if err != nil {
		return Result{}, fmt.Errorf("%w: template: %v", shared.ErrGenerationFailure, err)
	}

	pdf, err := g.renderer.RenderHTML(ctx, html)
	if err != nil {
		return Result{}, fmt.Errorf("%w: render: %v", shared.ErrGenerationFailure, err)
	}

	if err := g.store.Put(ctx, doc.StorageKey, pdf); err != nil {
		return Result{}, fmt.Errorf("%w: %v", shared.ErrStorageFailure, err)
	}

	sum := blake2b.Sum256(pdf)
	return Result{
		StorageKey:  doc.StorageKey,
		SizeBytes:   int64(len(pdf)),
		Checksum:    hex.EncodeToString(sum[:]),
		GeneratedAt: generatedAt,
		Skips:       skips,
	}, nil
}

// embedAsset loads one attachment from the store and runs the embed
// policy. A missing or unreadable blob is a skip, not an error.
func (g *Generator) embedAsset(ctx context.Context, ref AssetRef) EmbedResult {
	data, err := g.store.Get(ctx, ref.Key)
	if err != nil {
		return EmbedResult{Skip: SkipUnreadable}
	}
	return Embed(data)
}
