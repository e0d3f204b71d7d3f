package cloudevents

import (
	"time"
)

// Event types emitted by the reservation engine
const (
	QuotationCreated   = "wms.reservation.quotation-created"
	QuotationApproved  = "wms.reservation.quotation-approved"
	QuotationRejected  = "wms.reservation.quotation-rejected"
	QuotationExtended  = "wms.reservation.quotation-extended"
	QuotationConverted = "wms.reservation.quotation-converted"
	QuotationExpired   = "wms.reservation.quotation-expired"

	ReservationReleased = "wms.reservation.reservation-released"

	StockReceived = "wms.reservation.stock-received"
	StockAdjusted = "wms.reservation.stock-adjusted"
)

// SourceReservation is the CloudEvents source of every event this service emits
const SourceReservation = "/wms/reservation-service"

// Extension attribute names carried as Kafka headers
const (
	ExtCorrelationID = "wmscorrelationid"
	ExtQuotationID   = "wmsquotationid"
	ExtWorkflowID    = "wmsworkflowid"
)

// Event is a CloudEvents v1.0 structured-mode envelope
type Event struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"wmscorrelationid,omitempty"`
	QuotationID   string `json:"wmsquotationid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
}

// Validate checks the required CloudEvents attributes
func (e *Event) Validate() error {
	switch {
	case e.SpecVersion != "1.0":
		return errMissing("specversion")
	case e.Type == "":
		return errMissing("type")
	case e.Source == "":
		return errMissing("source")
	case e.ID == "":
		return errMissing("id")
	}
	return nil
}

type missingAttributeError string

func (m missingAttributeError) Error() string {
	return "cloudevents: missing or invalid attribute " + string(m)
}

func errMissing(attr string) error {
	return missingAttributeError(attr)
}
