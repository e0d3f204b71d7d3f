package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
	"github.com/wms-platform/reservation-service/pkg/metrics"
	"github.com/wms-platform/reservation-service/pkg/tracing"
)

// ProformaLifecycle drives quotations through their states. Every transition
// that ends a quotation releases its reservations in the same transaction.
type ProformaLifecycle struct {
	tx         *transactor
	store      *ReservationStore
	ledger     *StockLedger
	logger     *logging.Logger
	metrics    *metrics.Metrics
	now        Clock
	defaultTTL time.Duration
}

func newProformaLifecycle(tx *transactor, store *ReservationStore, ledger *StockLedger, logger *logging.Logger, m *metrics.Metrics, clock Clock, defaultTTL time.Duration) *ProformaLifecycle {
	return &ProformaLifecycle{
		tx:         tx,
		store:      store,
		ledger:     ledger,
		logger:     logger.WithComponent("proforma-lifecycle"),
		metrics:    m,
		now:        clock,
		defaultTTL: defaultTTL,
	}
}

// Create stores a PENDING quotation and reserves all of its lines. Nothing is
// persisted unless every line could be reserved.
func (p *ProformaLifecycle) Create(ctx context.Context, cmd CreateQuotationCommand) (*QuotationDTO, error) {
	now := p.now()
	expirationAt, err := resolveExpiry(now, cmd.ValidityDays, cmd.ExpirationAt, p.defaultTTL)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(cmd.QuotationID)
	if id == "" {
		id = "QUO-" + uuid.New().String()
	}
	lines := make([]domain.QuotationLine, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		lines = append(lines, domain.QuotationLine{
			ProductID:   l.ProductID,
			WarehouseID: l.WarehouseID,
			Quantity:    l.Quantity,
		})
	}

	var (
		quotation    *domain.Quotation
		reservations []*domain.Reservation
	)
	err = p.tx.run(ctx, "create_quotation", func(ctx context.Context, uow domain.UnitOfWork) error {
		q, err := domain.NewQuotation(id, cmd.CustomerID, lines, expirationAt, now)
		if err != nil {
			return err
		}
		rs, err := p.store.CreateForQuotation(ctx, uow, q.ID, q.Lines, q.ExpirationAt)
		if err != nil {
			return err
		}
		for _, r := range rs {
			if err := q.BindReservation(r.LineNumber, r.ID); err != nil {
				return err
			}
		}
		if err := q.RecordCreated(); err != nil {
			return err
		}
		if err := uow.Quotations().Insert(ctx, q); err != nil {
			return err
		}
		uow.Stage(q.PullEvents()...)
		quotation, reservations = q, rs
		return nil
	}, tracing.QuotationAttributes(id, "create")...)
	if err != nil {
		p.logger.Warn("Failed to create quotation", "quotationId", id, "lines", len(lines), "error", err)
		return nil, fmt.Errorf("failed to create quotation: %w", err)
	}

	p.metrics.RecordQuotationTransition("", string(domain.QuotationPending))
	p.logger.WithQuotation(quotation.ID).Info("Created quotation", "lines", len(quotation.Lines), "expirationAt", quotation.ExpirationAt)
	return ToQuotationDTO(quotation, reservations), nil
}

// Approve moves a PENDING quotation to APPROVED. Reservations are untouched.
func (p *ProformaLifecycle) Approve(ctx context.Context, cmd ApproveQuotationCommand) (*QuotationDTO, error) {
	now := p.now()

	var (
		quotation    *domain.Quotation
		reservations []*domain.Reservation
	)
	err := p.tx.run(ctx, "approve_quotation", func(ctx context.Context, uow domain.UnitOfWork) error {
		q, rs, err := p.loadAggregate(ctx, uow, cmd.QuotationID, false)
		if err != nil {
			return err
		}
		if err := q.Approve(now); err != nil {
			return err
		}
		if err := uow.Quotations().Save(ctx, q); err != nil {
			return err
		}
		uow.Stage(q.PullEvents()...)
		quotation, reservations = q, rs
		return nil
	}, tracing.QuotationAttributes(cmd.QuotationID, "approve")...)
	if err != nil {
		p.logger.Warn("Failed to approve quotation", "quotationId", cmd.QuotationID, "error", err)
		return nil, fmt.Errorf("failed to approve quotation: %w", err)
	}

	p.metrics.RecordQuotationTransition(string(domain.QuotationPending), string(domain.QuotationApproved))
	p.logger.WithQuotation(quotation.ID).Info("Approved quotation")
	return ToQuotationDTO(quotation, reservations), nil
}

// Reject releases every ACTIVE reservation and moves the quotation to REJECTED
func (p *ProformaLifecycle) Reject(ctx context.Context, cmd RejectQuotationCommand) (*QuotationDTO, error) {
	now := p.now()

	var (
		quotation    *domain.Quotation
		reservations []*domain.Reservation
		from         domain.QuotationState
	)
	err := p.tx.run(ctx, "reject_quotation", func(ctx context.Context, uow domain.UnitOfWork) error {
		q, _, err := p.loadAggregate(ctx, uow, cmd.QuotationID, true)
		if err != nil {
			return err
		}
		if !q.State.CanTransitionTo(domain.QuotationRejected) {
			return fmt.Errorf("%w: quotation %s is %s", domain.ErrInvalidStateTransition, q.ID, q.State)
		}
		from = q.State

		released, err := p.releaseAll(ctx, uow, q.ID, domain.ReleaseReasonRejected)
		if err != nil {
			return err
		}
		if err := q.Reject(cmd.Reason, released, now); err != nil {
			return err
		}
		if err := uow.Quotations().Save(ctx, q); err != nil {
			return err
		}
		uow.Stage(q.PullEvents()...)

		rs, err := uow.Reservations().FindByQuotation(ctx, q.ID)
		if err != nil {
			return err
		}
		quotation, reservations = q, rs
		return nil
	}, tracing.QuotationAttributes(cmd.QuotationID, "reject")...)
	if err != nil {
		p.logger.Warn("Failed to reject quotation", "quotationId", cmd.QuotationID, "error", err)
		return nil, fmt.Errorf("failed to reject quotation: %w", err)
	}

	p.metrics.RecordQuotationTransition(string(from), string(domain.QuotationRejected))
	p.logger.WithQuotation(quotation.ID).Info("Rejected quotation", "reason", cmd.Reason)
	return ToQuotationDTO(quotation, reservations), nil
}

// Extend moves the expiration of an open quotation and of its ACTIVE reservations
func (p *ProformaLifecycle) Extend(ctx context.Context, cmd ExtendQuotationCommand) (*QuotationDTO, error) {
	now := p.now()
	expirationAt, err := resolveExpiry(now, cmd.Days, cmd.ExpirationAt, 0)
	if err != nil {
		return nil, err
	}

	var (
		quotation    *domain.Quotation
		reservations []*domain.Reservation
	)
	err = p.tx.run(ctx, "extend_quotation", func(ctx context.Context, uow domain.UnitOfWork) error {
		q, rs, err := p.loadAggregate(ctx, uow, cmd.QuotationID, true)
		if err != nil {
			return err
		}
		if err := q.Extend(expirationAt, now); err != nil {
			return err
		}
		for _, r := range rs {
			if !r.IsActive() {
				continue
			}
			if err := r.Extend(expirationAt, now); err != nil {
				return err
			}
			if err := uow.Reservations().Save(ctx, r); err != nil {
				return err
			}
		}
		if err := uow.Quotations().Save(ctx, q); err != nil {
			return err
		}
		uow.Stage(q.PullEvents()...)
		quotation, reservations = q, rs
		return nil
	}, tracing.QuotationAttributes(cmd.QuotationID, "extend")...)
	if err != nil {
		p.logger.Warn("Failed to extend quotation", "quotationId", cmd.QuotationID, "error", err)
		return nil, fmt.Errorf("failed to extend quotation: %w", err)
	}

	p.logger.WithQuotation(quotation.ID).Info("Extended quotation", "expirationAt", expirationAt)
	return ToQuotationDTO(quotation, reservations), nil
}

// Expire moves one quotation past its expiration to EXPIRED and releases its
// reservations. It reports false without error when the quotation is already
// terminal or not yet expired at now.
func (p *ProformaLifecycle) Expire(ctx context.Context, quotationID string, now time.Time) (bool, error) {
	var (
		expired bool
		from    domain.QuotationState
	)
	err := p.tx.run(ctx, "expire_quotation", func(ctx context.Context, uow domain.UnitOfWork) error {
		expired = false
		q, _, err := p.loadAggregate(ctx, uow, quotationID, true)
		if err != nil {
			return err
		}
		if q.State.IsTerminal() || !q.IsExpired(now) {
			return nil
		}
		from = q.State

		released, err := p.releaseAll(ctx, uow, q.ID, domain.ReleaseReasonExpired)
		if err != nil {
			return err
		}
		if err := q.Expire(released, now); err != nil {
			return err
		}
		if err := uow.Quotations().Save(ctx, q); err != nil {
			return err
		}
		uow.Stage(q.PullEvents()...)
		expired = true
		return nil
	}, tracing.QuotationAttributes(quotationID, "expire")...)
	if err != nil {
		return false, fmt.Errorf("failed to expire quotation %s: %w", quotationID, err)
	}

	if expired {
		p.metrics.RecordQuotationTransition(string(from), string(domain.QuotationExpired))
		p.logger.WithQuotation(quotationID).Info("Expired quotation")
	}
	return expired, nil
}

// Get returns a quotation with its reservations
func (p *ProformaLifecycle) Get(ctx context.Context, query GetQuotationQuery) (*QuotationDTO, error) {
	var (
		quotation    *domain.Quotation
		reservations []*domain.Reservation
	)
	err := p.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		quotation, err = uow.Quotations().FindByID(ctx, query.QuotationID)
		if err != nil {
			return err
		}
		reservations, err = uow.Reservations().FindByQuotation(ctx, query.QuotationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get quotation: %w", err)
	}
	return ToQuotationDTO(quotation, reservations), nil
}

// List returns a page of quotations ordered by creation time
func (p *ProformaLifecycle) List(ctx context.Context, query ListQuotationsQuery) ([]QuotationDTO, error) {
	state := domain.QuotationState(strings.ToUpper(query.State))
	if state != "" && !state.IsValid() {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidQuotation, query.State)
	}

	var quotations []*domain.Quotation
	err := p.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		quotations, err = uow.Quotations().List(ctx, domain.QuotationFilter{
			State:  state,
			Limit:  query.Limit,
			Offset: query.Offset,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list quotations: %w", err)
	}
	return ToQuotationDTOs(quotations), nil
}

// loadAggregate locks the quotation and loads its reservations. With
// lockReservations the reservations are locked too, ordered by stock record,
// and re-read under their locks.
func (p *ProformaLifecycle) loadAggregate(ctx context.Context, uow domain.UnitOfWork, quotationID string, lockReservations bool) (*domain.Quotation, []*domain.Reservation, error) {
	q, err := uow.Quotations().LockByID(ctx, quotationID)
	if err != nil {
		return nil, nil, err
	}
	rs, err := uow.Reservations().FindByQuotation(ctx, quotationID)
	if err != nil {
		return nil, nil, err
	}
	if !lockReservations {
		return q, rs, nil
	}

	sortByStockRecord(rs)
	locked := make([]*domain.Reservation, 0, len(rs))
	for _, r := range rs {
		l, err := uow.Reservations().LockByID(ctx, r.ID)
		if err != nil {
			return nil, nil, err
		}
		locked = append(locked, l)
	}
	return q, locked, nil
}

// releaseAll releases the ACTIVE reservations of a quotation in stock record
// order and returns the released ids in line order.
func (p *ProformaLifecycle) releaseAll(ctx context.Context, uow domain.UnitOfWork, quotationID, reason string) ([]string, error) {
	rs, err := uow.Reservations().FindByQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	sortByStockRecord(rs)

	released := make([]*domain.Reservation, 0, len(rs))
	for _, r := range rs {
		if !r.IsActive() {
			continue
		}
		out, ok, err := p.ledger.Release(ctx, uow, r.ID, reason)
		if err != nil {
			return nil, err
		}
		if ok {
			released = append(released, out)
		}
	}

	sort.Slice(released, func(i, j int) bool { return released[i].LineNumber < released[j].LineNumber })
	ids := make([]string, len(released))
	for i, r := range released {
		ids[i] = r.ID
	}
	return ids, nil
}

func sortByStockRecord(rs []*domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].StockRecordID != rs[j].StockRecordID {
			return rs[i].StockRecordID < rs[j].StockRecordID
		}
		return rs[i].ID < rs[j].ID
	})
}
