package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

// RegisterRoutes mounts the reservation API on router under /api/v1
func RegisterRoutes(router gin.IRouter, services *application.Services, logger *logging.Logger) {
	v1 := router.Group("/api/v1")

	stock := v1.Group("/stock")
	{
		stock.POST("", receiveStockHandler(services.Stock, logger))
		stock.POST("/adjust", adjustStockHandler(services.Stock, logger))
		stock.GET("/:productId/:warehouseId", getStockHandler(services.Stock, logger))
	}

	quotations := v1.Group("/quotations")
	{
		quotations.POST("", createQuotationHandler(services.Lifecycle, logger))
		quotations.GET("", listQuotationsHandler(services.Lifecycle, logger))
		quotations.GET("/:id", getQuotationHandler(services.Lifecycle, logger))
		quotations.POST("/:id/approve", approveQuotationHandler(services.Lifecycle, logger))
		quotations.POST("/:id/reject", rejectQuotationHandler(services.Lifecycle, logger))
		quotations.POST("/:id/extend", extendQuotationHandler(services.Lifecycle, logger))
		quotations.POST("/:id/convert", convertQuotationHandler(services.Conversion, logger))
	}

	reservations := v1.Group("/reservations")
	{
		// static route before the :id wildcard
		reservations.POST("/release", bulkReleaseHandler(services.Reservations, logger))
		reservations.GET("", listReservationsHandler(services.Reservations, logger))
		reservations.GET("/:id", getReservationHandler(services.Reservations, logger))
		reservations.POST("/:id/release", releaseReservationHandler(services.Reservations, logger))
		reservations.POST("/:id/extend", extendReservationHandler(services.Reservations, logger))
	}

	v1.GET("/sales/:id", getSaleHandler(services.Conversion, logger))
	v1.POST("/sweeper/run", runSweepHandler(services.Sweeper, logger))
}
