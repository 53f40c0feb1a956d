package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChangeKind 變更種類
type ChangeKind string

const (
	ChangeKindCreated   ChangeKind = "created"
	ChangeKindConfirmed ChangeKind = "confirmed"
	ChangeKindRejected  ChangeKind = "rejected"
	ChangeKindRedeemed  ChangeKind = "redeemed"
	ChangeKindRemoved   ChangeKind = "removed"
)

// ChangeEvent 只通知「某筆預約變了」，訂閱者需自行重新讀取
type ChangeEvent struct {
	ReservationID string     `json:"reservation_id"`
	OwnerIdentity string     `json:"owner_identity"`
	Version       int64      `json:"version"`
	Kind          ChangeKind `json:"kind"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// NewChangeEvent 從已提交的預約建立變更事件
func NewChangeEvent(r *Reservation, kind ChangeKind) *ChangeEvent {
	return &ChangeEvent{
		ReservationID: r.ID,
		OwnerIdentity: r.OwnerIdentity,
		Version:       r.Version,
		Kind:          kind,
		OccurredAt:    time.Now().UTC(),
	}
}

// ChangeNotice 推送給 websocket 客戶端的內容，不含擁有者
type ChangeNotice struct {
	ReservationID string     `json:"reservation_id"`
	Version       int64      `json:"version"`
	Kind          ChangeKind `json:"kind"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

func (e *ChangeEvent) Notice() ChangeNotice {
	return ChangeNotice{
		ReservationID: e.ReservationID,
		Version:       e.Version,
		Kind:          e.Kind,
		OccurredAt:    e.OccurredAt,
	}
}

// DecisionEvent 付款確認或拒絕後送出，供通知預約者
type DecisionEvent struct {
	ReservationID  string            `json:"reservation_id"`
	OwnerIdentity  string            `json:"owner_identity"`
	DisplayName    string            `json:"display_name"`
	Status         ReservationStatus `json:"status"`
	RequestedUnits int               `json:"requested_units"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	DecidedAt      time.Time         `json:"decided_at"`
}

func NewDecisionEvent(r *Reservation) *DecisionEvent {
	return &DecisionEvent{
		ReservationID:  r.ID,
		OwnerIdentity:  r.OwnerIdentity,
		DisplayName:    r.DisplayName,
		Status:         r.Status,
		RequestedUnits: r.RequestedUnits,
		TotalAmount:    r.TotalAmount,
		DecidedAt:      r.UpdatedAt,
	}
}
