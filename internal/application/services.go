package application

import (
	"time"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
)

// Options tunes the application services
type Options struct {
	DefaultQuotationTTL time.Duration
	Sweeper             *SweeperConfig
	Outbox              *OutboxStager
	Publisher           domain.EventPublisher
	Clock               Clock
}

// Services bundles the use cases exposed to the API and the worker
type Services struct {
	Ledger       *StockLedger
	Stock        *StockService
	Reservations *ReservationStore
	Lifecycle    *ProformaLifecycle
	Conversion   *ConversionCoordinator
	Sweeper      *ExpirationSweeper
}

// NewServices wires every use case over one transaction manager
func NewServices(tx domain.TransactionManager, logger *logging.Logger, m *metrics.Metrics, opts Options) *Services {
	clock := opts.Clock
	if clock == nil {
		clock = systemClock
	}
	ttl := opts.DefaultQuotationTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	t := newTransactor(tx, opts.Outbox, opts.Publisher, logger, m)
	ledger := NewStockLedger(logger, m, clock)
	store := newReservationStore(t, ledger, logger, clock)
	lifecycle := newProformaLifecycle(t, store, ledger, logger, m, clock, ttl)

	return &Services{
		Ledger:       ledger,
		Stock:        newStockService(t, ledger, logger),
		Reservations: store,
		Lifecycle:    lifecycle,
		Conversion:   newConversionCoordinator(t, lifecycle, ledger, logger, m, clock),
		Sweeper:      newExpirationSweeper(t, lifecycle, ledger, logger, m, clock, opts.Sweeper),
	}
}
