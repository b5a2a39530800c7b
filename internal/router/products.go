package router

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"wholesale_catalog/internal/images"
	"wholesale_catalog/internal/model"
	"wholesale_catalog/internal/repository"
	"wholesale_catalog/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const formMemory = 8 << 20

func adminProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		list, err := d.Products.ListAll(ctx)
		if err != nil {
			respondErr(c, err, "", "list products")
			return
		}
		cats, err := d.Products.Categories(ctx)
		if err != nil {
			respondErr(c, err, "", "list categories")
			return
		}
		ok(c, gin.H{"productos": list, "categorias": cats})
	}
}

func adminProductsAPI(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Products.ListAll(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "list products")
			return
		}
		ok(c, list)
	}
}

func nextCode(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, gin.H{"codigo": d.Products.NextCode(c.Request.Context())})
	}
}

func getProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		p, err := d.Products.GetByID(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err, "Producto no encontrado", "get product")
			return
		}
		ok(c, p)
	}
}

// productForm is the parsed admin create/edit form. ActivoSet is false when
// the form carries no activo field.
type productForm struct {
	Product   model.Product
	ActivoSet bool
}

// parseForm reads the multipart (or urlencoded) body. It writes the error
// response itself and reports false when the request cannot be used.
func parseForm(c *gin.Context) bool {
	err := c.Request.ParseMultipartForm(formMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}
	if tooLarge(err) {
		fail(c, http.StatusRequestEntityTooLarge, "El archivo supera el tamaño máximo permitido")
		return false
	}
	fail(c, http.StatusBadRequest, "No se recibieron datos")
	return false
}

func parseProductForm(c *gin.Context) (productForm, error) {
	var f productForm
	p := &f.Product
	p.Codigo = strings.TrimSpace(c.PostForm("codigo"))
	p.Titulo = strings.TrimSpace(c.PostForm("titulo"))
	p.Descripcion = strings.TrimSpace(c.PostForm("descripcion"))
	p.Categoria = c.PostForm("categoria")

	if s := strings.TrimSpace(c.PostForm("precio")); s != "" {
		price, err := decimal.NewFromString(s)
		if err != nil {
			return f, errors.New("precio inválido")
		}
		p.Precio = price
	}
	var err error
	if p.Minimo, err = formInt(c, "minimo", 1); err != nil {
		return f, err
	}
	if p.Multiplo, err = formInt(c, "multiplo", 1); err != nil {
		return f, err
	}
	if p.Stock, err = formInt(c, "stock", 0); err != nil {
		return f, err
	}

	p.Activo = true
	if v, set := c.GetPostForm("activo"); set {
		f.ActivoSet = true
		p.Activo = formBool(v)
	}
	return f, nil
}

func formInt(c *gin.Context, field string, def int) (int, error) {
	s := strings.TrimSpace(c.PostForm(field))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s inválido", field)
	}
	return n, nil
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "si", "sí":
		return true
	}
	return false
}

// imageUpload returns the optional "imagen" file. A nil header means no
// image was sent.
func imageUpload(c *gin.Context) (*multipart.FileHeader, error) {
	fh, err := c.FormFile("imagen")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	if fh.Filename == "" {
		return nil, nil
	}
	if !images.Allowed(fh.Filename) {
		return nil, images.ErrUnsupportedType
	}
	return fh, nil
}

// imageStorer saves fh under the product code once it is known; the stored
// name is reported through saved so a failed transaction can remove it.
func imageStorer(d Deps, fh *multipart.FileHeader, saved *string) repository.ImageStorer {
	if fh == nil {
		return nil
	}
	return func(codigo string) (string, error) {
		src, err := fh.Open()
		if err != nil {
			return "", err
		}
		defer src.Close()
		name, err := d.Images.Save(codigo, fh.Filename, src)
		if err != nil {
			return "", err
		}
		*saved = name
		return name, nil
	}
}

func createProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if !parseForm(c) {
			return
		}
		form, err := parseProductForm(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		fh, err := imageUpload(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		var saved string
		p, err := d.Products.Create(ctx, form.Product, imageStorer(d, fh, &saved))
		if err != nil {
			if saved != "" {
				d.Images.Remove(ctx, saved)
			}
			respondErr(c, err, "", "create product")
			return
		}
		d.Metrics.RecordProductCreated()
		logger.Info(ctx, "product created", "id", p.ID, "codigo", p.Codigo)
		ok(c, p)
	}
}

func updateProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, valid := parseID(c)
		if !valid {
			return
		}
		if !parseForm(c) {
			return
		}
		form, err := parseProductForm(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		fh, err := imageUpload(c)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		cur, err := d.Products.GetByID(ctx, id)
		if err != nil {
			respondErr(c, err, "Producto no encontrado", "get product")
			return
		}
		if !form.ActivoSet {
			form.Product.Activo = cur.Activo
		}

		var saved string
		p := form.Product
		prev, err := d.Products.Update(ctx, id, &p, imageStorer(d, fh, &saved))
		if err != nil {
			// Same name means the previous file was overwritten in place.
			if saved != "" && saved != cur.Imagen {
				d.Images.Remove(ctx, saved)
			}
			respondErr(c, err, "Producto no encontrado", "update product")
			return
		}
		if saved != "" && prev.Imagen != "" && prev.Imagen != saved {
			d.Images.Remove(ctx, prev.Imagen)
		}
		logger.Info(ctx, "product updated", "id", id, "codigo", p.Codigo)
		ok(c, p)
	}
}

func updatePrice(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductoID uint             `json:"producto_id"`
			Precio     *decimal.Decimal `json:"precio"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ProductoID == 0 || req.Precio == nil {
			fail(c, http.StatusBadRequest, "No se recibieron datos")
			return
		}
		if err := d.Products.UpdatePrice(c.Request.Context(), req.ProductoID, *req.Precio); err != nil {
			respondErr(c, err, "Producto no encontrado", "update price")
			return
		}
		ok(c, gin.H{"producto_id": req.ProductoID, "precio": *req.Precio})
	}
}

// looseBool accepts true/false as well as 1/0 from the admin table toggles.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("activo: valor %s inválido", data)
	}
	return nil
}

func toggleActive(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductoID uint      `json:"producto_id"`
			Activo     looseBool `json:"activo"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.ProductoID == 0 {
			fail(c, http.StatusBadRequest, "No se recibieron datos")
			return
		}
		if err := d.Products.ToggleActive(c.Request.Context(), req.ProductoID, bool(req.Activo)); err != nil {
			respondErr(c, err, "Producto no encontrado", "toggle active")
			return
		}
		ok(c, gin.H{"producto_id": req.ProductoID, "activo": bool(req.Activo)})
	}
}

func deleteProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, valid := parseID(c)
		if !valid {
			return
		}
		prev, err := d.Products.Delete(ctx, id)
		if err != nil {
			respondErr(c, err, "Producto no encontrado", "delete product")
			return
		}
		if prev.Imagen != "" {
			d.Images.Remove(ctx, prev.Imagen)
		}
		logger.Info(ctx, "product deleted", "id", id, "codigo", prev.Codigo)
		ok(c, gin.H{"id": id})
	}
}
