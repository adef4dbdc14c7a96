package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
)

// collectMetric returns the sample of c whose labels include labels, or nil.
func collectMetric(t *testing.T, c prometheus.Collector, labels map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		if hasLabels(d, labels) {
			return d
		}
	}
	return nil
}

func hasLabels(d *dto.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lp := range d.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, c *prometheus.CounterVec, result string) float64 {
	t.Helper()
	m := collectMetric(t, c, map[string]string{"result": result})
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, op string) uint64 {
	t.Helper()
	m := collectMetric(t, passwordHashDuration, map[string]string{"operation": op})
	if m == nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_Register(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	beforeOK := counterValue(t, registrations, resultSuccess)
	beforeDup := counterValue(t, registrations, resultDuplicate)
	beforeHash := histogramCount(t, "hash")

	deps.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil).Once()
	_, err := svc.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	deps.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(domain.ErrDuplicateEmail).Once()
	_, err = svc.Register(ctx, validRegisterInput())
	require.Error(t, err)

	assert.Equal(t, beforeOK+1, counterValue(t, registrations, resultSuccess))
	assert.Equal(t, beforeDup+1, counterValue(t, registrations, resultDuplicate))
	assert.Equal(t, beforeHash+2, histogramCount(t, "hash"))
}

func TestMetrics_LoginOutcomes(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()
	user := existingUser(t, "password123")

	beforeOK := counterValue(t, loginAttempts, resultSuccess)
	beforeBad := counterValue(t, loginAttempts, resultInvalidCredentials)
	beforeCompare := histogramCount(t, "compare")

	deps.users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	deps.users.On("UpdateLastLogin", ctx, user.ID, mock.AnythingOfType("time.Time")).Return(nil)

	_, err := svc.Login(ctx, user.Email, "password123")
	require.NoError(t, err)
	_, err = svc.Login(ctx, user.Email, "wrong-password")
	require.Error(t, err)

	assert.Equal(t, beforeOK+1, counterValue(t, loginAttempts, resultSuccess))
	assert.Equal(t, beforeBad+1, counterValue(t, loginAttempts, resultInvalidCredentials))
	assert.Equal(t, beforeCompare+2, histogramCount(t, "compare"))
}
