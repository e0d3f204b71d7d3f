package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/reservation-service/internal/application"
	"github.com/wms-platform/reservation-service/pkg/api"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/middleware"
)

func responder(c *gin.Context, logger *logging.Logger) *middleware.ErrorResponder {
	return middleware.NewErrorResponder(c, logger, application.ErrorMappings())
}

func receiveStockHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req ReceiveStockRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}
		cmd, appErr := req.toCommand()
		if appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		record, err := service.ReceiveStock(c.Request.Context(), cmd)
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

func adjustStockHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req AdjustStockRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}
		cmd, appErr := req.toCommand()
		if appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		record, err := service.AdjustStock(c.Request.Context(), cmd)
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

func getStockHandler(service *application.StockService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := application.GetStockQuery{
			ProductID:   c.Param("productId"),
			WarehouseID: c.Param("warehouseId"),
		}

		record, err := service.GetStock(c.Request.Context(), query)
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, record)
	}
}

func createQuotationHandler(lifecycle *application.ProformaLifecycle, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req CreateQuotationRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}
		cmd, appErr := req.toCommand()
		if appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		quotation, err := lifecycle.Create(c.Request.Context(), cmd)
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.Header("Location", c.FullPath()+"/"+quotation.ID)
		c.JSON(http.StatusCreated, quotation)
	}
}

func getQuotationHandler(lifecycle *application.ProformaLifecycle, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		quotation, err := lifecycle.Get(c.Request.Context(), application.GetQuotationQuery{QuotationID: c.Param("id")})
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, quotation)
	}
}

func listQuotationsHandler(lifecycle *application.ProformaLifecycle, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := api.ParsePagination(c)

		quotations, err := lifecycle.List(c.Request.Context(), application.ListQuotationsQuery{
			State:  c.Query("state"),
			Limit:  page.Limit,
			Offset: page.Offset,
		})
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, api.NewPageResponse(quotations, page))
	}
}

func approveQuotationHandler(lifecycle *application.ProformaLifecycle, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		quotation, err := lifecycle.Approve(c.Request.Context(), application.ApproveQuotationCommand{QuotationID: c.Param("id")})
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, quotation)
	}
}

func rejectQuotationHandler(lifecycle *application.ProformaLifecycle, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req RejectQuotationRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		quotation, err := lifecycle.Reject(c.Request.Context(), application.RejectQuotationCommand{
			QuotationID: c.Param("id"),
			Reason:      req.Reason,
		})
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, quotation)
	}
}

func extendQuotationHandler(lifecycle *application.ProformaLifecycle, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req ExtendRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}
		if appErr := req.validate(); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		quotation, err := lifecycle.Extend(c.Request.Context(), application.ExtendQuotationCommand{
			QuotationID:  c.Param("id"),
			Days:         req.Days,
			ExpirationAt: req.ExpirationAt,
		})
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, quotation)
	}
}

func convertQuotationHandler(coordinator *application.ConversionCoordinator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := coordinator.Convert(c.Request.Context(), application.ConvertQuotationCommand{QuotationID: c.Param("id")})
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func getSaleHandler(coordinator *application.ConversionCoordinator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sale, err := coordinator.GetSale(c.Request.Context(), application.GetSaleQuery{SaleID: c.Param("id")})
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, sale)
	}
}

func getReservationHandler(store *application.ReservationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reservation, err := store.Get(c.Request.Context(), application.GetReservationQuery{ReservationID: c.Param("id")})
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, reservation)
	}
}

func listReservationsHandler(store *application.ReservationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		quotationID := c.Query("quotationId")
		if quotationID == "" {
			r.RespondValidationError("validation failed", map[string]string{"quotationId": "is required"})
			return
		}

		reservations, err := store.ListByQuotation(c.Request.Context(), application.ListReservationsQuery{QuotationID: quotationID})
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"quotationId":  quotationID,
			"reservations": reservations,
			"count":        len(reservations),
		})
	}
}

func releaseReservationHandler(store *application.ReservationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req ReleaseReservationRequest
		if c.Request.ContentLength > 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				r.RespondWithAppError(appErr)
				return
			}
		}

		result, err := store.Release(c.Request.Context(), application.ReleaseReservationCommand{
			ReservationID: c.Param("id"),
			Reason:        req.Reason,
		})
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func extendReservationHandler(store *application.ReservationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req ExtendRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}
		if appErr := req.validate(); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		reservation, err := store.Extend(c.Request.Context(), application.ExtendReservationCommand{
			ReservationID: c.Param("id"),
			Days:          req.Days,
			ExpiresAt:     req.ExpirationAt,
		})
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, reservation)
	}
}

func bulkReleaseHandler(store *application.ReservationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		r := responder(c, logger)

		var req BulkReleaseRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			r.RespondWithAppError(appErr)
			return
		}

		result, err := store.BulkRelease(c.Request.Context(), application.BulkReleaseCommand{
			ReservationIDs: req.ReservationIDs,
			Reason:         req.Reason,
		})
		if err != nil {
			r.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func runSweepHandler(sweeper *application.ExpirationSweeper, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := sweeper.SweepOnce(c.Request.Context(), application.TriggerManual)
		if err != nil {
			responder(c, logger).RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
