package parser

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"cogniquery/internal/models"
)

const (
	graphicDPI     = 200.0
	graphicPadding = 10.0 // points around the union of drawing rects
)

// ParsePDF extracts text and visuals from every page of a PDF. Per page it
// records the plain text, any embedded raster images (written to assetDir),
// and, when the page draws vector graphics, a rasterized crop of the region
// enclosing them. The input path must exist; a missing file is an error.
func ParsePDF(pdfPath, assetDir string) ([]models.PageRecord, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, &ExtractionError{Kind: "pdf", Err: err}
	}
	defer f.Close()

	imagesByPage, err := extractEmbeddedImages(pdfPath, assetDir)
	if err != nil {
		// Text extraction still proceeds without the embedded images.
		log.Warn().Err(err).Str("file", pdfPath).Msg("embedded image extraction failed")
		imagesByPage = nil
	}

	var rasterDoc *fitz.Document
	defer func() {
		if rasterDoc != nil {
			rasterDoc.Close()
		}
	}()

	var records []models.PageRecord
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		record := models.PageRecord{PageNumber: i}
		if page.V.IsNull() {
			records = append(records, record)
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("page text extraction failed")
			text = ""
		}
		record.Text = text
		record.Visuals = append(record.Visuals, imagesByPage[i]...)

		if rects := page.Content().Rect; len(rects) > 0 {
			if rasterDoc == nil {
				rasterDoc, err = fitz.New(pdfPath)
				if err != nil {
					log.Warn().Err(err).Str("file", pdfPath).Msg("cannot open pdf for rasterization")
				}
			}
			if rasterDoc != nil {
				graphic, err := renderDrawingRegion(rasterDoc, i, rects, assetDir)
				if err != nil {
					log.Warn().Err(err).Int("page", i).Msg("page graphics rasterization failed")
				} else {
					record.Visuals = append(record.Visuals, graphic)
				}
			}
		}

		records = append(records, record)
	}
	return records, nil
}

// extractEmbeddedImages pulls every raster image out of the PDF into
// assetDir/embedded and maps the written files back to their 1-based pages.
func extractEmbeddedImages(pdfPath, assetDir string) (map[int][]string, error) {
	outDir := filepath.Join(assetDir, "embedded")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := api.ExtractImagesFile(pdfPath, outDir, nil, nil); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	byPage := make(map[int][]string)
	for _, e := range entries {
		pageNum, ok := embeddedImagePage(base, e.Name())
		if !ok {
			continue
		}
		byPage[pageNum] = append(byPage[pageNum], filepath.Join(outDir, e.Name()))
	}
	for _, paths := range byPage {
		sort.Strings(paths)
	}
	return byPage, nil
}

// embeddedImagePage reads the 1-based page number out of a pdfcpu image file
// name, which has the form <base>_<page>_<resource>.<ext>. Both base and
// resource may themselves contain underscores, so the page is taken as the
// first field after the known base prefix.
func embeddedImagePage(base, filename string) (int, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
	default:
		return 0, false
	}
	rest, ok := strings.CutPrefix(strings.TrimSuffix(filename, filepath.Ext(filename)), base+"_")
	if !ok {
		return 0, false
	}
	pageField, _, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, false
	}
	pageNum, err := strconv.Atoi(pageField)
	if err != nil || pageNum < 1 {
		return 0, false
	}
	return pageNum, true
}

// renderDrawingRegion rasterizes the page and crops it to the padded bounding
// box of the drawing rects, capturing charts and diagrams that are painted as
// vector paths rather than stored as raster images.
func renderDrawingRegion(doc *fitz.Document, pageNum int, rects []pdf.Rect, assetDir string) (string, error) {
	img, err := doc.ImageDPI(pageNum-1, graphicDPI)
	if err != nil {
		return "", err
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rects {
		minX = math.Min(minX, math.Min(r.Min.X, r.Max.X))
		minY = math.Min(minY, math.Min(r.Min.Y, r.Max.Y))
		maxX = math.Max(maxX, math.Max(r.Min.X, r.Max.X))
		maxY = math.Max(maxY, math.Max(r.Min.Y, r.Max.Y))
	}
	minX -= graphicPadding
	minY -= graphicPadding
	maxX += graphicPadding
	maxY += graphicPadding

	// PDF coordinates have a bottom-left origin; the rendered image has a
	// top-left origin, so the Y axis flips around the page height.
	scale := graphicDPI / 72.0
	bounds := img.Bounds()
	pageHeight := float64(bounds.Dy()) / scale
	crop := image.Rect(
		int(minX*scale),
		int((pageHeight-maxY)*scale),
		int(maxX*scale),
		int((pageHeight-minY)*scale),
	).Intersect(bounds)
	if crop.Empty() {
		return "", fmt.Errorf("drawing region %v lies outside page %d", crop, pageNum)
	}

	cropped := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, crop.Min, draw.Src)

	outPath := filepath.Join(assetDir, fmt.Sprintf("page%d_graphic.png", pageNum))
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if err := png.Encode(out, cropped); err != nil {
		return "", err
	}
	return outPath, nil
}
