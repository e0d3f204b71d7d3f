package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
	"github.com/wms-platform/reservation-service/pkg/tracing"
)

// ConversionCoordinator turns an APPROVED quotation into a sale. Consuming
// every reservation, writing the sale and moving the quotation to CONVERTED
// happen in one transaction; any failure leaves all of them untouched.
type ConversionCoordinator struct {
	tx        *transactor
	lifecycle *ProformaLifecycle
	ledger    *StockLedger
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       Clock
}

func newConversionCoordinator(tx *transactor, lifecycle *ProformaLifecycle, ledger *StockLedger, logger *logging.Logger, m *metrics.Metrics, clock Clock) *ConversionCoordinator {
	return &ConversionCoordinator{
		tx:        tx,
		lifecycle: lifecycle,
		ledger:    ledger,
		logger:    logger.WithComponent("conversion-coordinator"),
		metrics:   m,
		now:       clock,
	}
}

// Convert consumes the quotation's reservations and records the sale.
// QuotationConverted is published only after the commit.
func (c *ConversionCoordinator) Convert(ctx context.Context, cmd ConvertQuotationCommand) (*ConversionResultDTO, error) {
	now := c.now()

	var (
		quotation    *domain.Quotation
		reservations []*domain.Reservation
		sale         *domain.Sale
	)
	err := c.tx.run(ctx, "convert_quotation", func(ctx context.Context, uow domain.UnitOfWork) error {
		q, rs, err := c.lifecycle.loadAggregate(ctx, uow, cmd.QuotationID, true)
		if err != nil {
			return err
		}
		if err := q.CanConvert(now); err != nil {
			return err
		}

		byID := make(map[string]*domain.Reservation, len(rs))
		for _, r := range rs {
			byID[r.ID] = r
		}
		referenced := make(map[string]bool, len(q.Lines))
		for _, line := range q.Lines {
			referenced[line.ReservationID] = true
			r, ok := byID[line.ReservationID]
			if !ok {
				return fmt.Errorf("%w: line %d of %s has no reservation", domain.ErrInvalidReservationState, line.LineNumber, q.ID)
			}
			if !r.IsActive() {
				return fmt.Errorf("%w: line %d reservation %s is %s", domain.ErrInvalidReservationState, line.LineNumber, r.ID, r.State)
			}
		}

		consumed := make(map[string]*domain.Reservation, len(rs))
		for _, r := range rs {
			if !referenced[r.ID] {
				continue
			}
			out, err := c.ledger.Consume(ctx, uow, r.ID)
			if err != nil {
				return fmt.Errorf("line %d: %w", r.LineNumber, err)
			}
			consumed[out.ID] = out
		}

		s := domain.NewSale(q, now)
		if err := q.Convert(s.ID, q.ReservationIDs(), now); err != nil {
			return err
		}
		if err := uow.Sales().Insert(ctx, s); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}
		if err := uow.Quotations().Save(ctx, q); err != nil {
			return err
		}
		uow.Stage(q.PullEvents()...)

		final := make([]*domain.Reservation, 0, len(q.Lines))
		for _, line := range q.Lines {
			final = append(final, consumed[line.ReservationID])
		}
		quotation, reservations, sale = q, final, s
		return nil
	}, tracing.QuotationAttributes(cmd.QuotationID, "convert")...)
	if err != nil {
		c.logger.Warn("Conversion rolled back", "quotationId", cmd.QuotationID, "error", err)
		return nil, fmt.Errorf("failed to convert quotation: %w", err)
	}

	c.metrics.RecordQuotationTransition(string(domain.QuotationApproved), string(domain.QuotationConverted))
	c.logger.WithQuotation(quotation.ID).Info("Converted quotation", "saleId", sale.ID, "lines", len(sale.Lines))
	return &ConversionResultDTO{
		Quotation: *ToQuotationDTO(quotation, reservations),
		Sale:      *ToSaleDTO(sale),
	}, nil
}

// GetSale returns a sale produced by a conversion
func (c *ConversionCoordinator) GetSale(ctx context.Context, query GetSaleQuery) (*SaleDTO, error) {
	var sale *domain.Sale
	err := c.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		sale, err = uow.Sales().FindByID(ctx, query.SaleID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return ToSaleDTO(sale), nil
}
