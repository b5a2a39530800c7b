package router

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"wholesale_catalog/internal/config"
	"wholesale_catalog/internal/images"
	"wholesale_catalog/internal/metrics"
	"wholesale_catalog/internal/middleware"
	"wholesale_catalog/internal/queue"
	"wholesale_catalog/internal/repository"
	"wholesale_catalog/pkg/logger"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Deps are the collaborators the handlers share. Redis, Outbox and Metrics
// are optional: without Redis there is no rate limiting and no idempotent
// checkout; without Outbox no order events are emitted.
type Deps struct {
	Config   config.AppConfig
	Products *repository.ProductRepository
	Orders   *repository.OrderRepository
	Images   *images.Manager
	Sessions middleware.SessionStore
	Redis    *rd.Client
	Outbox   *queue.Outbox
	Metrics  *metrics.Metrics
}

// Setup registers every HTTP route.
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	checkoutLimit := d.rateLimit("checkout", d.Config.CheckoutRateLimit, d.Config.CheckoutRateWindow)
	loginLimit := d.rateLimit("login", d.Config.LoginRateLimit, d.Config.LoginRateWindow)

	// Public storefront
	r.GET("/api/productos", listCatalog(d))
	r.GET("/api/carrito/precios", cartPrices(d))
	r.POST("/enviar_pedido", checkoutLimit, sendOrder(d))
	r.POST("/guardar-pedido", checkoutLimit, saveOrder(d))
	r.GET("/img/:name", serveImage(d))

	// Admin session
	r.POST("/admin/login", loginLimit, login(d))
	r.POST("/admin/logout", logout(d))

	admin := r.Group("/admin", middleware.RequireAdmin(d.Sessions))
	{
		admin.GET("/dashboard", dashboard(d))

		admin.GET("/productos", adminProducts(d))
		admin.GET("/api/productos", adminProductsAPI(d))
		admin.GET("/codigo-siguiente", nextCode(d))
		admin.POST("/producto", limitBody(d.Config.MaxUploadBytes), createProduct(d))
		admin.GET("/producto/:id", getProduct(d))
		admin.POST("/producto/:id", limitBody(d.Config.MaxUploadBytes), updateProduct(d))
		admin.POST("/producto/actualizar-precio", updatePrice(d))
		admin.POST("/producto/toggle-activo", toggleActive(d))
		admin.POST("/producto/:id/eliminar", deleteProduct(d))

		admin.GET("/descargar-excel", downloadExcel(d))
		admin.POST("/subir-excel", limitBody(d.Config.MaxUploadBytes), uploadExcel(d))
		admin.GET("/lista-precios", priceSheet(d))

		admin.GET("/productos-nuevos", newProducts(d))
		admin.GET("/productos-nuevos/descargar-imagenes", downloadNewImages(d))
		admin.POST("/productos-nuevos/:id/quitar", dismissNew(d))

		admin.GET("/pedidos", listOrders(d))
		admin.POST("/pedido/:id/estado", updateOrderStatus(d))
		admin.POST("/pedidos/limpiar", clearOrders(d))
	}
}

func (d Deps) rateLimit(scope string, limit int, window time.Duration) gin.HandlerFunc {
	if d.Redis == nil || limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RedisRateLimit(d.Redis, scope, limit, window)
}

// limitBody caps the request body; multipart parsing then fails with
// *http.MaxBytesError on oversized uploads.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": status, "msg": msg})
}

// respondErr maps repository errors onto the envelope: validation -> 400,
// not found -> 404 with notFoundMsg, anything else is logged and -> 500.
func respondErr(c *gin.Context, err error, notFoundMsg, action string) {
	var ve *repository.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ve.Msg)
	case errors.Is(err, repository.ErrNotFound):
		fail(c, http.StatusNotFound, notFoundMsg)
	default:
		logger.Error(c.Request.Context(), action+" failed", "error", err)
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "ID inválido")
		return 0, false
	}
	return uint(id), true
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
