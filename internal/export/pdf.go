package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/wudi/pdfkit/builder"
	"github.com/wudi/pdfkit/ir/semantic"
	"github.com/wudi/pdfkit/writer"

	"github.com/marklens/marklens/internal/entity"
)

// A4 in points.
const (
	pageWidth  = 595.0
	pageHeight = 842.0
	margin     = 50.0
)

// ReportPDF renders an A4 report card for the record. When snapshot is
// non-empty it is decoded (PNG or JPEG) and embedded on a second page,
// scaled to the page width.
func (s *Service) ReportPDF(ctx context.Context, record entity.AnalysisResult, snapshot []byte) ([]byte, error) {
	start := time.Now()

	b := builder.NewBuilder()
	b.SetInfo(&semantic.DocumentInfo{Title: "Marksheet Report - " + record.StudentName})

	page := b.NewPage(pageWidth, pageHeight)
	page.DrawText("Marksheet Report", margin, pageHeight-70, builder.TextOptions{FontSize: 24, Color: builder.Color{R: 0.1, G: 0.1, B: 0.1}}).
		DrawText(record.StudentName, margin, pageHeight-100, builder.TextOptions{FontSize: 14}).
		DrawLine(margin, pageHeight-112, pageWidth-margin, pageHeight-112, builder.LineOptions{StrokeColor: builder.Color{B: 0.5}, LineWidth: 1})

	page.DrawTable(subjectTable(record), builder.TableOptions{
		X:           margin,
		Y:           pageHeight - 140,
		RowHeight:   22,
		CellPadding: 4,
		BorderColor: builder.Color{R: 0.6, G: 0.6, B: 0.6},
		BorderWidth: 0.5,
		HeaderFill:  builder.Color{R: 0.9, G: 0.9, B: 0.95},
		DefaultSize: 10,
	})

	totalsY := pageHeight - 160 - float64(len(record.Subjects)+1)*22 - 30
	page.DrawText(fmt.Sprintf("Total: %.0f / %.0f", record.TotalObtained, record.TotalPossible), margin, totalsY, builder.TextOptions{FontSize: 12}).
		DrawText(fmt.Sprintf("Overall average: %.0f%%", record.Percentage), margin, totalsY-18, builder.TextOptions{FontSize: 12})

	y := totalsY - 48
	if record.Summary != "" {
		page.DrawText("Summary", margin, y, builder.TextOptions{FontSize: 12})
		y -= 16
		for _, line := range wrapText(record.Summary, 90) {
			page.DrawText(line, margin, y, builder.TextOptions{FontSize: 10})
			y -= 14
		}
		y -= 10
	}
	if len(record.Feedback) > 0 {
		page.DrawText("Recommendations", margin, y, builder.TextOptions{FontSize: 12})
		y -= 16
		for _, fb := range record.Feedback {
			for _, line := range wrapText("- "+fb, 90) {
				page.DrawText(line, margin, y, builder.TextOptions{FontSize: 10})
				y -= 14
			}
		}
	}

	page.DrawText("Generated "+time.Now().UTC().Format("2006-01-02 15:04 UTC"), margin, margin, builder.TextOptions{FontSize: 8, Color: builder.Color{R: 0.5, G: 0.5, B: 0.5}})
	page.Finish()

	if len(snapshot) > 0 {
		if err := addSnapshotPage(b, snapshot); err != nil {
			// A bad snapshot should not sink the report; the tabular part
			// stands on its own.
			s.logger.Warn("export.pdf.snapshot_skipped", "error", err)
		}
	}

	doc, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("pdf build: %w", err)
	}

	var buf bytes.Buffer
	w := writer.NewWriter()
	if err := w.Write(ctx, doc, &buf, writer.Config{}); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}

	s.logger.Info("export.pdf.ok",
		"student", record.StudentName,
		"subjects", len(record.Subjects),
		"snapshot", len(snapshot) > 0,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func subjectTable(record entity.AnalysisResult) builder.Table {
	rows := []builder.TableRow{{
		Cells: []builder.TableCell{
			{Text: "Subject"}, {Text: "Score"}, {Text: "Full Marks"}, {Text: "Percent"},
		},
	}}
	for _, subj := range record.Subjects {
		full := subj.FullMarksOrDefault()
		percent := ""
		if full > 0 {
			percent = fmt.Sprintf("%.1f%%", subj.Score/full*100)
		}
		rows = append(rows, builder.TableRow{
			Cells: []builder.TableCell{
				{Text: subj.Subject},
				{Text: fmt.Sprintf("%.0f", subj.Score)},
				{Text: fmt.Sprintf("%.0f", full)},
				{Text: percent},
			},
		})
	}
	return builder.Table{
		Columns:    []float64{215, 90, 90, 100},
		Rows:       rows,
		HeaderRows: 1,
	}
}

func addSnapshotPage(b builder.PDFBuilder, snapshot []byte) error {
	img, _, err := image.Decode(bytes.NewReader(snapshot))
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("empty snapshot image")
	}

	pdfImg := &semantic.Image{
		Width:            width,
		Height:           height,
		BitsPerComponent: 8,
		ColorSpace:       semantic.DeviceColorSpace{Name: "DeviceRGB"},
		Data:             imageToRGB(img),
	}

	targetWidth := pageWidth - 2*margin
	scale := targetWidth / float64(width)
	targetHeight := float64(height) * scale
	if maxH := pageHeight - 2*margin - 40; targetHeight > maxH {
		scale = maxH / float64(height)
		targetHeight = maxH
		targetWidth = float64(width) * scale
	}

	b.NewPage(pageWidth, pageHeight).
		DrawText("Chart Snapshot", margin, pageHeight-70, builder.TextOptions{FontSize: 16}).
		DrawImage(pdfImg, margin, pageHeight-90-targetHeight, targetWidth, targetHeight, builder.ImageOptions{}).
		Finish()
	return nil
}

func imageToRGB(img image.Image) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data = append(data, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	return data
}

// wrapText splits s into lines of at most width characters, breaking on
// spaces. Crude but enough for report prose.
func wrapText(s string, width int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(s) {
		if line == "" {
			line = word
			continue
		}
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
