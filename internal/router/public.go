package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"wholesale_catalog/internal/checkout"
	"wholesale_catalog/internal/model"
	"wholesale_catalog/internal/queue"
	"wholesale_catalog/pkg/logger"
	rediskey "wholesale_catalog/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader lets a client retry an order submission safely.
const IdempotencyHeader = "Idempotency-Key"

// listCatalog returns the public catalog plus the checkout settings the
// storefront needs to render the cart.
func listCatalog(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Products.ListActive(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "list catalog")
			return
		}
		ok(c, gin.H{
			"productos":     list,
			"pedido_minimo": d.Config.MinimumOrder,
			"whatsapp":      d.Config.WhatsAppNumber,
		})
	}
}

// cartEntry.Disponible is false once the product runs out of stock.
type cartEntry struct {
	ID         uint            `json:"id"`
	Precio     decimal.Decimal `json:"precio"`
	Stock      int             `json:"stock"`
	Minimo     int             `json:"minimo"`
	Multiplo   int             `json:"multiplo"`
	Imagen     string          `json:"imagen"`
	Disponible bool            `json:"disponible"`
}

// cartPrices is keyed by code: ids change when a spreadsheet re-import
// inserts rows, codes do not.
func cartPrices(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Products.ListForCart(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "list cart prices")
			return
		}
		out := make(map[string]cartEntry, len(list))
		for _, p := range list {
			out[p.Codigo] = cartEntry{
				ID:         p.ID,
				Precio:     p.Precio,
				Stock:      p.Stock,
				Minimo:     p.Minimo,
				Multiplo:   p.Multiplo,
				Imagen:     p.Imagen,
				Disponible: p.Visible(),
			}
		}
		ok(c, out)
	}
}

// sendOrder checks the minimum and answers the WhatsApp deep link.
func sendOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Total decimal.Decimal  `json:"total"`
			Items []model.LineItem `json:"items"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "No se recibieron datos")
			return
		}
		if err := checkout.CheckMinimum(req.Total, d.Config.MinimumOrder); err != nil {
			d.Metrics.RecordCheckoutRejected("minimum")
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		msg := checkout.BuildMessage(d.Config.StoreName, req.Items, req.Total)
		ok(c, gin.H{
			"url":     checkout.WhatsAppURL(d.Config.WhatsAppNumber, msg),
			"mensaje": msg,
		})
	}
}

type saveOrderRequest struct {
	Nombre                  string          `json:"nombre"`
	CUIT                    string          `json:"cuit"`
	Telefono                string          `json:"telefono"`
	Email                   string          `json:"email"`
	Direccion               string          `json:"direccion"`
	MetodoEntrega           string          `json:"metodo_entrega"`
	EnvioDireccion          string          `json:"envio_direccion"`
	EnvioLocalidad          string          `json:"envio_localidad"`
	EnvioProvincia          string          `json:"envio_provincia"`
	EnvioCP                 string          `json:"envio_cp"`
	EnvioNombreDestinatario string          `json:"envio_nombre_destinatario"`
	EnvioReferencias        string          `json:"envio_referencias"`
	Productos               json.RawMessage `json:"productos"`
	Total                   decimal.Decimal `json:"total"`
}

func (r saveOrderRequest) order() *model.Order {
	return &model.Order{
		ClienteNombre:           r.Nombre,
		ClienteCUIT:             r.CUIT,
		ClienteTelefono:         r.Telefono,
		ClienteEmail:            r.Email,
		ClienteDireccion:        r.Direccion,
		MetodoEntrega:           r.MetodoEntrega,
		EnvioDireccion:          r.EnvioDireccion,
		EnvioLocalidad:          r.EnvioLocalidad,
		EnvioProvincia:          r.EnvioProvincia,
		EnvioCP:                 r.EnvioCP,
		EnvioNombreDestinatario: r.EnvioNombreDestinatario,
		EnvioReferencias:        r.EnvioReferencias,
		Productos:               productsText(r.Productos),
		Total:                   r.Total,
	}
}

// productsText accepts the line items either as an already serialized JSON
// string or as a JSON array, and stores the serialized text.
func productsText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

// saveOrder stores a checkout submission. With an Idempotency-Key header the
// key is claimed in Redis first, so a replayed submission answers 409
// instead of creating a second order.
func saveOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req saveOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "No se recibieron datos")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		owner := ""
		if idemKey != "" && d.Redis != nil {
			claimOwner := uuid.New().String()
			claimed, err := rediskey.ClaimCheckout(ctx, d.Redis, idemKey, claimOwner, d.Config.CheckoutClaimTTL)
			switch {
			case err != nil:
				logger.Warn(ctx, "checkout claim unavailable, saving without idempotency", "error", err)
			case !claimed:
				d.Metrics.RecordCheckoutRejected("duplicate")
				fail(c, http.StatusConflict, "El pedido ya fue registrado")
				return
			default:
				owner = claimOwner
			}
		}

		o := req.order()
		if err := d.Orders.Create(ctx, o); err != nil {
			if owner != "" {
				if relErr := rediskey.ReleaseCheckout(ctx, d.Redis, idemKey, owner); relErr != nil {
					logger.Warn(ctx, "release checkout claim failed", "error", relErr)
				}
			}
			respondErr(c, err, "", "save order")
			return
		}
		d.Metrics.RecordOrder()
		logger.Info(ctx, "order saved", "order_id", o.ID, "total", o.Total.String())

		if d.Outbox != nil {
			if _, err := d.Outbox.Append(ctx, queue.NewOrderEvent(o)); err != nil {
				logger.Warn(ctx, "order event not queued", "order_id", o.ID, "error", err)
			}
		}
		ok(c, gin.H{"pedido_id": o.ID})
	}
}

func serveImage(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, info, err := d.Images.Open(c.Param("name"))
		if err != nil {
			fail(c, http.StatusNotFound, "Imagen no encontrada")
			return
		}
		defer f.Close()
		c.Header("Cache-Control", "public, max-age=3600")
		http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
	}
}
