package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus 預約狀態類型
type ReservationStatus string

const (
	ReservationStatusPending  ReservationStatus = "pending"
	ReservationStatusPaid     ReservationStatus = "paid"
	ReservationStatusRejected ReservationStatus = "rejected"
)

// IsValid 驗證狀態是否有效
func (s ReservationStatus) IsValid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusPaid, ReservationStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
// paid 與 rejected 都是確認階段的終點，只能被刪除
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	transitions := map[ReservationStatus][]ReservationStatus{
		ReservationStatusPending:  {ReservationStatusPaid, ReservationStatusRejected},
		ReservationStatusPaid:     {},
		ReservationStatusRejected: {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Reservation 預約模型
type Reservation struct {
	ID                string            `json:"id" db:"id"`
	OwnerIdentity     string            `json:"owner_identity" db:"owner_identity"`
	DisplayName       string            `json:"display_name" db:"display_name"`
	Phone             string            `json:"phone,omitempty" db:"phone"`
	Program           string            `json:"program,omitempty" db:"program"`
	Semester          string            `json:"semester,omitempty" db:"semester"`
	EventTitle        string            `json:"event_title" db:"event_title"`
	Class             string            `json:"class" db:"class"`
	RequestedUnits    int               `json:"requested_units" db:"requested_units"`
	UnitPrice         decimal.Decimal   `json:"unit_price" db:"unit_price"`
	TotalAmount       decimal.Decimal   `json:"total_amount" db:"total_amount"`
	Status            ReservationStatus `json:"status" db:"status"`
	RemainingUnits    int               `json:"remaining_units" db:"remaining_units"`
	ProofReference    string            `json:"proof_reference" db:"proof_reference"`
	CredentialPayload *string           `json:"credential_payload,omitempty" db:"credential_payload"`
	Version           int64             `json:"version" db:"version"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// IsExhausted 已付款且沒有剩餘入場數
func (r *Reservation) IsExhausted() bool {
	return r.Status == ReservationStatusPaid && r.RemainingUnits == 0
}

// RedeemedUnits 已入場人數
func (r *Reservation) RedeemedUnits() int {
	return r.RequestedUnits - r.RemainingUnits
}

// Clone 回傳深拷貝，避免呼叫端改到儲存層持有的資料
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	if r.CredentialPayload != nil {
		payload := *r.CredentialPayload
		c.CredentialPayload = &payload
	}
	return &c
}

// UpdateReservationParams 部分欄位更新
// ExpectedVersion 不為 nil 時只在版本相符時寫入 (compare-and-set)
type UpdateReservationParams struct {
	Status            *ReservationStatus
	RemainingUnits    *int
	CredentialPayload *string
	ExpectedVersion   *int64
}

// IsEmpty 沒有任何欄位需要更新
func (p UpdateReservationParams) IsEmpty() bool {
	return p.Status == nil && p.RemainingUnits == nil && p.CredentialPayload == nil
}

// SubmitReservationParams 建立預約的輸入
type SubmitReservationParams struct {
	OwnerIdentity  string
	DisplayName    string
	Phone          string
	Program        string
	Semester       string
	Class          string
	RequestedUnits int
	ProofReference string
}

// CreateReservationRequest 建立預約請求
type CreateReservationRequest struct {
	DisplayName    string `json:"display_name"`
	Phone          string `json:"phone"`
	Program        string `json:"program"`
	Semester       string `json:"semester"`
	Class          string `json:"class" binding:"required"`
	RequestedUnits int    `json:"requested_units"`
	ProofReference string `json:"proof_reference" binding:"required"`
}

// RedeemRequest 入場扣減請求
type RedeemRequest struct {
	Units int `json:"units" binding:"required,min=1"`
}

// RedeemCredentialRequest 以掃描到的憑證扣減
type RedeemCredentialRequest struct {
	Credential string `json:"credential" binding:"required"`
	Units      int    `json:"units" binding:"required,min=1"`
}

// ResolveCredentialRequest 掃描預覽請求
type ResolveCredentialRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// RedemptionResult 扣減結果
type RedemptionResult struct {
	ReservationID  string `json:"reservation_id"`
	Redeemed       int    `json:"redeemed"`
	RemainingAfter int    `json:"remaining_after"`
	Version        int64  `json:"version"`
}

// BalanceView 顯示用的剩餘入場數，不作為扣減依據
type BalanceView struct {
	ReservationID  string            `json:"reservation_id"`
	Status         ReservationStatus `json:"status"`
	RequestedUnits int               `json:"requested_units"`
	RemainingUnits int               `json:"remaining_units"`
	Version        int64             `json:"version"`
}

// NewBalanceView 從預約建立顯示用餘額
func NewBalanceView(r *Reservation) *BalanceView {
	return &BalanceView{
		ReservationID:  r.ID,
		Status:         r.Status,
		RequestedUnits: r.RequestedUnits,
		RemainingUnits: r.RemainingUnits,
		Version:        r.Version,
	}
}

// ResolvedCredential 掃描預覽：憑證上的快照加上目前的實際狀態
type ResolvedCredential struct {
	ReservationID     string            `json:"reservation_id"`
	CredentialVersion int               `json:"credential_version"`
	OwnerIdentity     string            `json:"owner_identity"`
	DisplayName       string            `json:"display_name"`
	Class             string            `json:"class"`
	UnitsAtIssue      int               `json:"units_at_issue"`
	IssuedAt          time.Time         `json:"issued_at"`
	Status            ReservationStatus `json:"status"`
	RequestedUnits    int               `json:"requested_units"`
	RemainingUnits    int               `json:"remaining_units"`
	Version           int64             `json:"version"`
}
