// Package credential QR 碼內容的編碼與解析
// 內容只用來找到預約，剩餘人數以資料庫為準
package credential

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "go-gin-reservation-ledger/pkg/app_errors"
)

// CurrentVersion Encode 寫出的版本
const CurrentVersion = 2

// 第一版格式: {v:1, id, uid, nombre, tipo, entradas, ts(毫秒)}
const legacyVersion = 1

// Snapshot 發出當下的預約快照
type Snapshot struct {
	Version       int       `json:"v"`
	ID            string    `json:"id"`
	OwnerIdentity string    `json:"ownerIdentity"`
	DisplayName   string    `json:"displayName"`
	Class         string    `json:"class"`
	UnitsAtIssue  int       `json:"unitsAtIssue"`
	IssuedAt      time.Time `json:"issuedAt"`
}

type legacyPayload struct {
	ID       string `json:"id"`
	UID      string `json:"uid"`
	Nombre   string `json:"nombre"`
	Tipo     string `json:"tipo"`
	Entradas int    `json:"entradas"`
	TS       int64  `json:"ts"`
}

// Encode 一律寫成 CurrentVersion，時間轉 UTC
func Encode(s Snapshot) (string, error) {
	if s.ID == "" {
		return "", fmt.Errorf("encode credential: id is required")
	}
	s.Version = CurrentVersion
	s.IssuedAt = s.IssuedAt.UTC()

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode credential: %w", err)
	}
	return string(data), nil
}

// Decode 錯誤都包裝 apperrors.ErrDecode
func Decode(payload string) (Snapshot, error) {
	payload = strings.TrimSpace(payload)

	var header struct {
		Version *int   `json:"v"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &header); err != nil {
		return Snapshot{}, fmt.Errorf("%w: not json: %v", apperrors.ErrDecode, err)
	}
	if header.ID == "" {
		return Snapshot{}, fmt.Errorf("%w: missing id", apperrors.ErrDecode)
	}
	if header.Version == nil {
		return Snapshot{}, fmt.Errorf("%w: missing version", apperrors.ErrDecode)
	}

	switch *header.Version {
	case CurrentVersion:
		var s Snapshot
		if err := json.Unmarshal([]byte(payload), &s); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
		}
		return s, nil
	case legacyVersion:
		var p legacyPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
		}
		return Snapshot{
			Version:       legacyVersion,
			ID:            p.ID,
			OwnerIdentity: p.UID,
			DisplayName:   p.Nombre,
			Class:         p.Tipo,
			UnitsAtIssue:  p.Entradas,
			IssuedAt:      time.UnixMilli(p.TS).UTC(),
		}, nil
	default:
		return Snapshot{}, fmt.Errorf("%w: unsupported version %d", apperrors.ErrDecode, *header.Version)
	}
}
