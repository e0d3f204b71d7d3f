package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/reservation-service/internal/domain"
	"github.com/wms-platform/reservation-service/pkg/logging"
)

// ReservationStore creates, extends and releases reservations
type ReservationStore struct {
	tx     *transactor
	ledger *StockLedger
	logger *logging.Logger
	now    Clock
}

func newReservationStore(tx *transactor, ledger *StockLedger, logger *logging.Logger, clock Clock) *ReservationStore {
	return &ReservationStore{
		tx:     tx,
		ledger: ledger,
		logger: logger.WithComponent("reservation-store"),
		now:    clock,
	}
}

// CreateForQuotation reserves every line inside uow. Lines are reserved in
// stock record order so concurrent quotations lock records consistently. The
// first failing line aborts the whole unit of work. The result is in line order.
func (s *ReservationStore) CreateForQuotation(ctx context.Context, uow domain.UnitOfWork, quotationID string, lines []domain.QuotationLine, expiresAt time.Time) ([]*domain.Reservation, error) {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		la, lb := lines[order[a]], lines[order[b]]
		if la.StockRecordID() != lb.StockRecordID() {
			return la.StockRecordID() < lb.StockRecordID()
		}
		return la.LineNumber < lb.LineNumber
	})

	out := make([]*domain.Reservation, len(lines))
	for _, i := range order {
		line := lines[i]
		reservation, err := s.ledger.Reserve(ctx, uow, ReserveRequest{
			QuotationID: quotationID,
			LineNumber:  line.LineNumber,
			ProductID:   line.ProductID,
			WarehouseID: line.WarehouseID,
			Quantity:    line.Quantity,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line.LineNumber, err)
		}
		out[i] = reservation
	}
	return out, nil
}

// Get returns one reservation
func (s *ReservationStore) Get(ctx context.Context, query GetReservationQuery) (*ReservationDTO, error) {
	var reservation *domain.Reservation
	err := s.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		reservation, err = uow.Reservations().FindByID(ctx, query.ReservationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	dto := ToReservationDTO(reservation)
	return &dto, nil
}

// ListByQuotation returns the reservations of a quotation in line order
func (s *ReservationStore) ListByQuotation(ctx context.Context, query ListReservationsQuery) ([]ReservationDTO, error) {
	var reservations []*domain.Reservation
	err := s.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if _, err := uow.Quotations().FindByID(ctx, query.QuotationID); err != nil {
			return err
		}
		var err error
		reservations, err = uow.Reservations().FindByQuotation(ctx, query.QuotationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return ToReservationDTOs(reservations), nil
}

// Extend moves the expiry of an ACTIVE reservation. Quantities are untouched.
func (s *ReservationStore) Extend(ctx context.Context, cmd ExtendReservationCommand) (*ReservationDTO, error) {
	now := s.now()
	expiresAt, err := resolveExpiry(now, cmd.Days, cmd.ExpiresAt, 0)
	if err != nil {
		return nil, err
	}

	var reservation *domain.Reservation
	err = s.tx.run(ctx, "extend_reservation", func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		reservation, err = uow.Reservations().LockByID(ctx, cmd.ReservationID)
		if err != nil {
			return err
		}
		if err := reservation.Extend(expiresAt, now); err != nil {
			return err
		}
		return uow.Reservations().Save(ctx, reservation)
	}, attribute.String("reservation.id", cmd.ReservationID))
	if err != nil {
		s.logger.Warn("Failed to extend reservation", "reservationId", cmd.ReservationID, "error", err)
		return nil, fmt.Errorf("failed to extend reservation: %w", err)
	}

	s.logger.Info("Extended reservation", "reservationId", reservation.ID, "expiresAt", expiresAt)
	dto := ToReservationDTO(reservation)
	return &dto, nil
}

// Release returns one reservation's quantity to available. Releasing an
// already terminal reservation succeeds with Released false.
func (s *ReservationStore) Release(ctx context.Context, cmd ReleaseReservationCommand) (*ReleaseResultDTO, error) {
	reason := cmd.Reason
	if reason == "" {
		reason = domain.ReleaseReasonManual
	}

	var (
		reservation *domain.Reservation
		released    bool
	)
	err := s.tx.run(ctx, "release_reservation", func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		reservation, released, err = s.ledger.Release(ctx, uow, cmd.ReservationID, reason)
		if err != nil {
			return err
		}
		if released {
			uow.Stage(releasedEvent(reservation))
		}
		return nil
	}, attribute.String("reservation.id", cmd.ReservationID))
	if err != nil {
		s.logger.Warn("Failed to release reservation", "reservationId", cmd.ReservationID, "error", err)
		return nil, fmt.Errorf("failed to release reservation: %w", err)
	}

	if released {
		s.logger.Info("Released reservation", "reservationId", reservation.ID, "reason", reason)
	}
	return &ReleaseResultDTO{Reservation: ToReservationDTO(reservation), Released: released}, nil
}

// BulkRelease releases many reservations. Each stock record is handled in its
// own transaction so one failing record does not hold back the others.
func (s *ReservationStore) BulkRelease(ctx context.Context, cmd BulkReleaseCommand) (*BulkReleaseResult, error) {
	reason := cmd.Reason
	if reason == "" {
		reason = domain.ReleaseReasonManual
	}
	result := &BulkReleaseResult{
		Released:        []string{},
		AlreadyTerminal: []string{},
		NotFound:        []string{},
	}

	ids := uniqueSorted(cmd.ReservationIDs)
	if len(ids) == 0 {
		return result, nil
	}

	var found []*domain.Reservation
	err := s.tx.view(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		found, err = uow.Reservations().FindByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	groups := make(map[string][]string)
	seen := make(map[string]bool, len(found))
	for _, r := range found {
		seen[r.ID] = true
		groups[r.StockRecordID] = append(groups[r.StockRecordID], r.ID)
	}
	for _, id := range ids {
		if !seen[id] {
			result.NotFound = append(result.NotFound, id)
		}
	}

	records := make([]string, 0, len(groups))
	for id := range groups {
		records = append(records, id)
	}
	sort.Strings(records)

	for _, recordID := range records {
		group := groups[recordID]
		sort.Strings(group)

		var released, terminal []string
		err := s.tx.run(ctx, "bulk_release", func(ctx context.Context, uow domain.UnitOfWork) error {
			released, terminal = nil, nil
			// Reservations before the stock record, the same order as
			// quotation-level releases.
			for _, id := range group {
				if _, err := uow.Reservations().LockByID(ctx, id); err != nil {
					return err
				}
			}
			for _, id := range group {
				reservation, ok, err := s.ledger.Release(ctx, uow, id, reason)
				if err != nil {
					return err
				}
				if !ok {
					terminal = append(terminal, id)
					continue
				}
				released = append(released, id)
				uow.Stage(releasedEvent(reservation))
			}
			return nil
		}, attribute.String("reservation.stock_record_id", recordID))
		if err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			for _, id := range group {
				result.Failed[id] = err.Error()
			}
			s.logger.Warn("Bulk release failed for stock record", "stockRecordId", recordID, "count", len(group), "error", err)
			continue
		}
		result.Released = append(result.Released, released...)
		result.AlreadyTerminal = append(result.AlreadyTerminal, terminal...)
	}

	s.logger.Info("Bulk release finished",
		"requested", len(ids),
		"released", len(result.Released),
		"alreadyTerminal", len(result.AlreadyTerminal),
		"notFound", len(result.NotFound),
		"failed", len(result.Failed),
	)
	return result, nil
}

func releasedEvent(r *domain.Reservation) *domain.ReservationReleasedEvent {
	return &domain.ReservationReleasedEvent{
		ReservationID: r.ID,
		QuotationID:   r.QuotationID,
		StockRecordID: r.StockRecordID,
		Quantity:      r.Quantity,
		Reason:        r.ReleaseReason,
		ReleasedAt:    *r.ReleasedAt,
	}
}

func uniqueSorted(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// resolveExpiry picks an absolute instant, then a day count, then the fallback
func resolveExpiry(now time.Time, days int, at *time.Time, fallback time.Duration) (time.Time, error) {
	switch {
	case at != nil:
		if !at.After(now) {
			return time.Time{}, fmt.Errorf("%w: %s is not in the future", domain.ErrInvalidExpiration, at.Format(time.RFC3339))
		}
		return at.UTC(), nil
	case days > 0:
		return now.AddDate(0, 0, days), nil
	case days < 0:
		return time.Time{}, fmt.Errorf("%w: %d days", domain.ErrInvalidExpiration, days)
	case fallback > 0:
		return now.Add(fallback), nil
	}
	return time.Time{}, fmt.Errorf("%w: set days or an absolute instant", domain.ErrInvalidExpiration)
}
