package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffect_PublicOmitsHiddenPrompt(t *testing.T) {
	effect := &Effect{
		ID:           "e-1",
		Name:         "Center Stage",
		Slug:         CenterStageSlug,
		HiddenPrompt: "SECRET stadium crowd instructions",
		IsPremium:    true,
	}

	full, err := json.Marshal(effect)
	require.NoError(t, err)
	assert.NotContains(t, string(full), "SECRET")

	public, err := json.Marshal(effect.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(public), "SECRET")
	assert.NotContains(t, string(public), "hidden_prompt")
	assert.Contains(t, string(public), `"is_premium":true`)
}

func TestEffect_TypeTag(t *testing.T) {
	assert.Equal(t, "specialized", (&Effect{Slug: CenterStageSlug}).TypeTag())
	assert.Equal(t, "standard", (&Effect{Slug: "vintage-film"}).TypeTag())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}

func TestMonthKey(t *testing.T) {
	ts := time.Date(2026, time.October, 16, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-01", MonthKey(ts))

	// month is computed in UTC
	east := time.FixedZone("UTC+5", 5*3600)
	assert.Equal(t, "2026-10-01", MonthKey(time.Date(2026, time.November, 1, 2, 0, 0, 0, east)))
}

func TestMetadata_ScanValue(t *testing.T) {
	m := Metadata{MetaPromptUsed: "prompt", MetaMock: true}
	v, err := m.Value()
	require.NoError(t, err)

	var out Metadata
	require.NoError(t, out.Scan(v))
	assert.Equal(t, "prompt", out[MetaPromptUsed])
	assert.Equal(t, true, out[MetaMock])

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)

	require.Error(t, out.Scan(42))
}

func TestIsAdmissionDenied(t *testing.T) {
	err := fmt.Errorf("submit: %w", &AdmissionDeniedError{Reason: DenialPremiumRequired})

	reason, ok := IsAdmissionDenied(err)
	assert.True(t, ok)
	assert.Equal(t, DenialPremiumRequired, reason)

	_, ok = IsAdmissionDenied(ErrEffectNotFound)
	assert.False(t, ok)
}
