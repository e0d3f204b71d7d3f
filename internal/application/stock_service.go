package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/tracing"
)

// StockService exposes receipts, counts and stock lookups
type StockService struct {
	tx     *transactor
	ledger *StockLedger
	logger *logging.Logger
}

func newStockService(tx *transactor, ledger *StockLedger, logger *logging.Logger) *StockService {
	return &StockService{
		tx:     tx,
		ledger: ledger,
		logger: logger.WithComponent("stock-service"),
	}
}

// ReceiveStock adds received quantity to a stock record
func (s *StockService) ReceiveStock(ctx context.Context, cmd ReceiveStockCommand) (*StockRecordDTO, error) {
	var record *domain.StockRecord
	err := s.tx.run(ctx, "receive_stock", func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		record, err = s.ledger.Receive(ctx, uow, cmd.ProductID, cmd.WarehouseID, cmd.Quantity, cmd.Reference)
		return err
	}, tracing.StockRecordAttributes(cmd.ProductID, cmd.WarehouseID)...)
	if err != nil {
		s.logger.Error("Failed to receive stock", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to receive stock: %w", err)
	}

	s.logger.Info("Received stock", "stockRecordId", record.ID, "quantity", cmd.Quantity.String(), "reference", cmd.Reference)
	return ToStockRecordDTO(record), nil
}

// AdjustStock sets on-hand from a physical count
func (s *StockService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (*StockRecordDTO, error) {
	var record *domain.StockRecord
	err := s.tx.run(ctx, "adjust_stock", func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		record, err = s.ledger.Adjust(ctx, uow, cmd.ProductID, cmd.WarehouseID, cmd.CountedOnHand, cmd.Reason)
		return err
	}, tracing.StockRecordAttributes(cmd.ProductID, cmd.WarehouseID)...)
	if err != nil {
		s.logger.Error("Failed to adjust stock", "productId", cmd.ProductID, "warehouseId", cmd.WarehouseID, "error", err)
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	s.logger.Audit(ctx, "adjust", "stock_record", record.ID, map[string]any{
		"onHand": record.OnHand.String(),
		"reason": cmd.Reason,
	})
	return ToStockRecordDTO(record), nil
}

// GetStock returns the current ledger slot of a product in a warehouse
func (s *StockService) GetStock(ctx context.Context, query GetStockQuery) (*StockRecordDTO, error) {
	var record *domain.StockRecord
	err := s.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		record, err = uow.StockRecords().FindByID(ctx, domain.StockRecordID(query.ProductID, query.WarehouseID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}
	return ToStockRecordDTO(record), nil
}
