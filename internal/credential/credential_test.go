package credential

import (
	"encoding/json"
	"testing"
	"time"

	apperrors "go-gin-reservation-ledger/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	issuedAt := time.Date(2025, 9, 5, 21, 30, 0, 123456789, time.UTC)

	t.Run("Round Trip", func(t *testing.T) {
		snapshot := Snapshot{
			ID:            "3b0c6f8e-0d7e-4b8e-9a39-0c1f0b7d2a11",
			OwnerIdentity: "ana@test.com",
			DisplayName:   "Ana",
			Class:         "Periquera",
			UnitsAtIssue:  5,
			IssuedAt:      issuedAt,
		}

		payload, err := Encode(snapshot)
		require.NoError(t, err)

		decoded, err := Decode(payload)
		require.NoError(t, err)

		assert.Equal(t, snapshot.ID, decoded.ID)
		assert.Equal(t, snapshot.OwnerIdentity, decoded.OwnerIdentity)
		assert.Equal(t, snapshot.DisplayName, decoded.DisplayName)
		assert.Equal(t, snapshot.Class, decoded.Class)
		assert.Equal(t, snapshot.UnitsAtIssue, decoded.UnitsAtIssue)
		assert.Equal(t, CurrentVersion, decoded.Version)
		assert.True(t, issuedAt.Equal(decoded.IssuedAt))
	})

	t.Run("Deterministic", func(t *testing.T) {
		snapshot := Snapshot{ID: "abc", Class: "Sala", UnitsAtIssue: 10, IssuedAt: issuedAt}
		first, err := Encode(snapshot)
		require.NoError(t, err)
		second, err := Encode(snapshot)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Field Names", func(t *testing.T) {
		payload, err := Encode(Snapshot{ID: "abc", UnitsAtIssue: 3, IssuedAt: issuedAt})
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal([]byte(payload), &fields))
		for _, key := range []string{"v", "id", "ownerIdentity", "displayName", "class", "unitsAtIssue", "issuedAt"} {
			assert.Contains(t, fields, key)
		}
		assert.Equal(t, float64(CurrentVersion), fields["v"])
	})

	t.Run("Issued At Normalized To UTC", func(t *testing.T) {
		local := time.FixedZone("CST", -6*60*60)
		payload, err := Encode(Snapshot{ID: "abc", IssuedAt: issuedAt.In(local)})
		require.NoError(t, err)

		decoded, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, decoded.IssuedAt.Location())
		assert.True(t, issuedAt.Equal(decoded.IssuedAt))
	})

	t.Run("Failed - Encode Without ID", func(t *testing.T) {
		_, err := Encode(Snapshot{})
		assert.Error(t, err)
	})
}

func TestDecode(t *testing.T) {
	t.Run("Legacy Payload", func(t *testing.T) {
		payload := `{"v":1,"id":"42","uid":"ana@test.com","nombre":"Ana","tipo":"Sala","entradas":12,"ts":1757122200000}`

		decoded, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, "42", decoded.ID)
		assert.Equal(t, "ana@test.com", decoded.OwnerIdentity)
		assert.Equal(t, "Ana", decoded.DisplayName)
		assert.Equal(t, "Sala", decoded.Class)
		assert.Equal(t, 12, decoded.UnitsAtIssue)
		assert.Equal(t, int64(1757122200000), decoded.IssuedAt.UnixMilli())
	})

	t.Run("Surrounding Whitespace", func(t *testing.T) {
		decoded, err := Decode("  {\"v\":2,\"id\":\"abc\"}\n")
		require.NoError(t, err)
		assert.Equal(t, "abc", decoded.ID)
	})

	failures := []struct {
		name    string
		payload string
	}{
		{"Not JSON", "hello"},
		{"Empty", ""},
		{"Missing ID", `{"v":2,"class":"Sala"}`},
		{"Empty ID", `{"v":2,"id":""}`},
		{"Missing Version", `{"id":"abc"}`},
		{"Unknown Version", `{"v":9,"id":"abc"}`},
		{"Wrong Types", `{"v":2,"id":"abc","unitsAtIssue":"many"}`},
	}
	for _, tc := range failures {
		t.Run("Failed - "+tc.name, func(t *testing.T) {
			_, err := Decode(tc.payload)
			assert.ErrorIs(t, err, apperrors.ErrDecode)
		})
	}
}
