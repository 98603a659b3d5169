package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kendall-kelly/autoshop-crm-api/models"
	"github.com/kendall-kelly/autoshop-crm-api/realtime"
	"github.com/kendall-kelly/autoshop-crm-api/services"
	"github.com/kendall-kelly/autoshop-crm-api/utils"
	log "github.com/sirupsen/logrus"
)

// allowedOrigin accepts same-origin clients and the configured CORS origins
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range appConfig().CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{CheckOrigin: allowedOrigin}

// boardSnapshot is pushed on connect so the board starts populated
type boardSnapshot struct {
	WorkOrders []models.WorkOrder `json:"work_orders"`
}

// WorkshopBoard handles GET /api/v1/ws/board. Staff clients receive the
// open work orders and then every live event of their shop.
func WorkshopBoard(hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		shopID, ok := tenant(c)
		if !ok {
			return
		}

		var open []models.WorkOrder
		for _, status := range []models.WorkOrderStatus{models.WorkOrderCreated, models.WorkOrderDiagnosing, models.WorkOrderInProgress} {
			orders, _, err := workOrderService().List(c.Request.Context(), shopID, services.WorkOrderFilter{
				Status: status,
				Page:   utils.Page{Number: 1, Size: utils.MaxPageSize},
			})
			if err != nil {
				respondError(c, err)
				return
			}
			open = append(open, orders...)
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("ws: upgrade failed")
			return
		}
		client := hub.Register(shopID, conn)
		defer hub.Unregister(client)

		if err := client.Send("board.sync", boardSnapshot{WorkOrders: open}); err != nil {
			return
		}
		// boards are read-only; block until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
