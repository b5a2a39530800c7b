package router

import (
	"net/http"

	"wholesale_catalog/internal/middleware"
	"wholesale_catalog/internal/model"
	"wholesale_catalog/pkg/logger"

	"github.com/gin-gonic/gin"
)

func listOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Orders.List(c.Request.Context())
		if err != nil {
			respondErr(c, err, "", "list orders")
			return
		}
		ok(c, gin.H{"pedidos": list, "estados": model.OrderStatuses})
	}
}

func updateOrderStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		var req struct {
			Estado model.OrderStatus `json:"estado" form:"estado"`
		}
		if err := c.ShouldBind(&req); err != nil {
			fail(c, http.StatusBadRequest, "No se recibieron datos")
			return
		}
		ctx := c.Request.Context()
		if err := d.Orders.UpdateStatus(ctx, id, req.Estado); err != nil {
			respondErr(c, err, "Pedido no encontrado", "update order status")
			return
		}
		o, err := d.Orders.GetByID(ctx, id)
		if err != nil {
			respondErr(c, err, "Pedido no encontrado", "get order")
			return
		}
		ok(c, o)
	}
}

func clearOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		n, err := d.Orders.DeleteAll(ctx)
		if err != nil {
			respondErr(c, err, "", "clear orders")
			return
		}
		logger.Warn(ctx, "orders cleared", "count", n, "by", c.GetString(middleware.AdminUserKey))
		ok(c, gin.H{"cantidad": n})
	}
}
