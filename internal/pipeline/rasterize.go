package pipeline

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"

	"mockinterview-go/internal/apperr"
)

// rasterizePages 把 PDF 的每一页栅格化为一张固定 DPI 的 PNG 图片，页序保留，
// 供后续 OCR 步骤逐页/逐批送入 Model Gateway。逐页遍历沿用 unipdf
// model.NewPdfReader 的常见用法，但落到 render.ImageDevice 的位图渲染而非
// 文本抽取，因为생기부 PDF 通常是扫描件，页面文本层不可靠，OCR 必须吃图片
// 而不是文本层。
func rasterizePages(pdfBytes []byte, dpi int) ([][]byte, error) {
	if dpi <= 0 {
		dpi = 150
	}
	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return nil, apperr.InvalidRequest(fmt.Sprintf("read pdf: %v", err))
	}
	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, apperr.InvalidRequest(fmt.Sprintf("count pdf pages: %v", err))
	}
	if numPages == 0 {
		return nil, apperr.InvalidRequest("pdf has no pages")
	}

	pages := make([][]byte, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("get pdf page %d", i), err)
		}

		device := render.NewImageDevice()
		if box, err := page.GetMediaBox(); err == nil && box != nil {
			widthPts := box.Urx - box.Llx
			device.OutputWidth = int(widthPts * float64(dpi) / 72.0)
		}

		img, err := device.Render(page)
		if err != nil {
			return nil, apperr.Internal(fmt.Sprintf("rasterize pdf page %d", i), err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, apperr.Internal(fmt.Sprintf("encode page %d image", i), err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}
