package router

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"wholesale_catalog/internal/spreadsheet"
	"wholesale_catalog/pkg/logger"

	"github.com/gin-gonic/gin"
)

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}

func downloadExcel(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Products.ListForExport(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "export products")
			return
		}
		var buf bytes.Buffer
		if err := spreadsheet.Export(&buf, list); err != nil {
			respondErr(c, err, "", "export products")
			return
		}
		attachment(c, spreadsheet.FileName(time.Now()))
		c.Data(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
	}
}

// uploadExcel applies an edited export. A wrong header rejects the file;
// bad rows are reported in the summary while the rest are applied.
func uploadExcel(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		fh, err := c.FormFile("archivo")
		if err != nil {
			if tooLarge(err) {
				fail(c, http.StatusRequestEntityTooLarge, "El archivo supera el tamaño máximo permitido")
				return
			}
			fail(c, http.StatusBadRequest, "No se recibió ningún archivo")
			return
		}
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
			fail(c, http.StatusBadRequest, "El archivo debe ser Excel (.xlsx)")
			return
		}
		src, err := fh.Open()
		if err != nil {
			respondErr(c, err, "", "open upload")
			return
		}
		defer src.Close()

		rows, err := spreadsheet.ParseImport(src)
		if err != nil {
			if errors.Is(err, spreadsheet.ErrBadHeader) {
				fail(c, http.StatusBadRequest, err.Error())
				return
			}
			logger.Warn(ctx, "unreadable spreadsheet", "file", fh.Filename, "error", err)
			fail(c, http.StatusBadRequest, "No se pudo leer el archivo Excel")
			return
		}
		res, err := d.Products.ImportRows(ctx, rows)
		if err != nil {
			respondErr(c, err, "", "import products")
			return
		}
		d.Metrics.RecordImport(res.Updated, res.Created, res.Failed())
		logger.Info(ctx, "spreadsheet imported", "file", fh.Filename,
			"updated", res.Updated, "created", res.Created, "failed", res.Failed())
		ok(c, res)
	}
}

func priceSheet(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		list, err := d.Products.ListPriceSheet(ctx)
		if err != nil {
			respondErr(c, err, "", "price sheet")
			return
		}
		cats, err := d.Products.Categories(ctx)
		if err != nil {
			respondErr(c, err, "", "list categories")
			return
		}
		ok(c, gin.H{
			"productos":  list,
			"categorias": cats,
			"fecha":      time.Now().Format("02/01/2006"),
		})
	}
}

func newProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Products.ListNew(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "list new products")
			return
		}
		ok(c, list)
	}
}

func downloadNewImages(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		refs, err := d.Products.NewImages(ctx)
		if err != nil {
			respondErr(c, err, "", "list new images")
			return
		}
		var buf bytes.Buffer
		n := 0
		if len(refs) > 0 {
			if n, err = d.Images.Bundle(ctx, &buf, refs); err != nil {
				respondErr(c, err, "", "bundle images")
				return
			}
		}
		if n == 0 {
			fail(c, http.StatusNotFound, "No hay productos nuevos con imágenes")
			return
		}
		attachment(c, fmt.Sprintf("imagenes_productos_nuevos_%s.zip", time.Now().Format("20060102_150405")))
		c.Data(http.StatusOK, "application/zip", buf.Bytes())
	}
}

func dismissNew(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		if err := d.Products.DismissNew(c.Request.Context(), id); err != nil {
			respondErr(c, err, "El producto no está en la lista de nuevos", "dismiss new product")
			return
		}
		ok(c, gin.H{"producto_id": id})
	}
}
